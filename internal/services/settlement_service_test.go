package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettlementService_RecordExternalTransfer(t *testing.T) {
	outbox := filepath.Join(t.TempDir(), "outbox")
	s := NewSettlementService(outbox)

	err := s.RecordExternalTransfer("tx-123", "alice", "friend@example.com", 2500)
	assert.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outbox, "tx-123.xml"))
	assert.NoError(t, err)

	xml := string(data)
	assert.Contains(t, xml, "<?xml")
	assert.Contains(t, xml, "tx-123")
	assert.Contains(t, xml, "alice")
	assert.Contains(t, xml, "friend@example.com")
	assert.Contains(t, xml, "USD")
}
