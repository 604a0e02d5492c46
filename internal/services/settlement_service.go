package services

import (
	"encoding/xml"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"

	"github.com/parlabank/backend/internal/models"
)

const settlementBIC = "PARLBANK"

// SettlementService turns external-recipient transfers into pacs.008
// FIToFICustomerCreditTransfer messages and drops them in an outbox
// directory for the settlement network to pick up.
type SettlementService struct {
	outboxDir string
	currency  string
}

func NewSettlementService(outboxDir string) *SettlementService {
	return &SettlementService{outboxDir: outboxDir, currency: "USD"}
}

// RecordExternalTransfer writes a pacs.008 message for a transfer that left
// the bank. source is the debited account's username, recipient the external
// address the funds are destined for.
func (s *SettlementService) RecordExternalTransfer(txID, source, recipient string, amountCents int64) error {
	doc := s.createPacs008(txID, source, recipient, amountCents)

	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pacs.008: %w", err)
	}

	if err := os.MkdirAll(s.outboxDir, 0o700); err != nil {
		return fmt.Errorf("failed to create outbox: %w", err)
	}
	path := filepath.Join(s.outboxDir, txID+".xml")
	if err := os.WriteFile(path, []byte(xml.Header+string(xmlData)), 0o600); err != nil {
		return fmt.Errorf("failed to write settlement message: %w", err)
	}

	log.Printf("[SETTLEMENT] queued pacs.008 %s for %s", txID, models.FormatAmount(amountCents))
	return nil
}

func (s *SettlementService) createPacs008(txID, source, recipient string, amountCents int64) *pacs_v08.FIToFICustomerCreditTransferV08 {
	now := time.Now()
	amount := float64(amountCents) / 100

	return &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(txID),
			CreDtTm: common.ISODateTime(now),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(s.currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&now),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(txID)}[0],
					EndToEndId: common.Max35Text(txID),
					TxId:       &[]common.Max35Text{common.Max35Text(txID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(s.currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&now),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(settlementBIC)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(source)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text("EXTERNAL"),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(recipient)}[0],
				},
			},
		},
	}
}
