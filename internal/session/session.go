// Package session implements the per-connection conversation: authentication,
// mode selection and the command loop that drives the transaction engine.
// Every connection gets exactly one Session; the session claims the
// authenticated username in the registry and is responsible for releasing it
// on every exit path.
package session

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/parlabank/backend/internal/intent"
	"github.com/parlabank/backend/internal/models"
	"github.com/parlabank/backend/internal/services"
)

// Status codes carried as the entire message body. The remote party treats
// them as out-of-band signals rather than prose.
const (
	codeAlreadyActive    = "101"
	codeUsernameTaken    = "104"
	codeLogout           = "105"
	codeAttemptsExceeded = "106"
)

const optionsMessage = "\n" +
	"1. View Balance\n" +
	"2. Deposit\n" +
	"3. Withdraw\n" +
	"4. Transfer Funds\n" +
	"5. View Transaction History\n" +
	"6. Change to NLP\n" +
	"7. LogOut"

const welcomeMessage = "Welcome to ParlaBank!\n1. Login to existing account\n2. Create Account"

// errClosed ends the session. It covers transport failure, an explicit
// "exit" from the client and a completed logout.
var errClosed = errors.New("session closed")

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]{3,32}$`)

// Session is the per-connection state machine.
type Session struct {
	id       string
	conn     Conn
	auth     *services.AuthService
	engine   *services.TransactionEngine
	registry *services.SessionRegistry
	resolver intent.Resolver
	validate *validator.Validate

	user *models.User
	nl   bool
}

func New(conn Conn, auth *services.AuthService, engine *services.TransactionEngine,
	registry *services.SessionRegistry, resolver intent.Resolver) *Session {
	return &Session{
		id:       uuid.New().String(),
		conn:     conn,
		auth:     auth,
		engine:   engine,
		registry: registry,
		resolver: resolver,
		validate: validator.New(),
	}
}

// Run drives the session to completion. The registry claim and the
// connection are released on every exit path, including panics in the
// command loop, so an abnormal termination can never strand a username.
func (s *Session) Run(ctx context.Context) {
	defer func() {
		if s.user != nil {
			s.registry.Release(s.user.Username, s.id)
		}
		s.conn.Close()
	}()

	log.Printf("[SESSION] %s starting", s.id)
	if err := s.send(welcomeMessage); err != nil {
		return
	}
	choice, err := s.recv()
	if err != nil {
		return
	}

	switch choice {
	case "1":
		if !s.login() {
			return
		}
	case "2":
		if !s.createAccount() {
			return
		}
	default:
		return
	}

	if !s.chooseMode() {
		return
	}
	s.loop(ctx)
	log.Printf("[SESSION] %s for %q finished", s.id, s.user.Username)
}

func (s *Session) send(msg string) error {
	if err := s.conn.Send(msg); err != nil {
		log.Printf("[SESSION] %s send failed: %v", s.id, err)
		return errClosed
	}
	return nil
}

// recv treats a transport error and an explicit "exit" identically: the
// session is over.
func (s *Session) recv() (string, error) {
	msg, err := s.conn.Receive()
	if err != nil {
		return "", errClosed
	}
	if msg == "exit" {
		return "", errClosed
	}
	return msg, nil
}

// login runs the username and password sub-flows. Each prompt allows
// MaxAuthAttempts tries before the session is cut off with code 106.
func (s *Session) login() bool {
	var username string
	for tries := 0; tries < services.MaxAuthAttempts; tries++ {
		prompt := "Username:"
		if tries > 0 {
			prompt = "Invalid username, please try again.\nUsername:"
		}
		if s.send(prompt) != nil {
			return false
		}
		got, err := s.recv()
		if err != nil {
			return false
		}
		if s.auth.FindUser(got) {
			username = got
			break
		}
		log.Printf("[SESSION] %s login attempt for unknown username", s.id)
	}
	if username == "" {
		s.send(codeAttemptsExceeded)
		return false
	}

	for tries := 0; tries < services.MaxAuthAttempts; tries++ {
		prompt := "Password:"
		if tries > 0 {
			prompt = "Incorrect password, please try again.\nPassword:"
		}
		if s.send(prompt) != nil {
			return false
		}
		password, err := s.recv()
		if err != nil {
			return false
		}

		result, user := s.auth.Login(username, password, s.id)
		switch result {
		case services.LoginSuccess:
			s.user = user
			return true
		case services.LoginAlreadyActive:
			s.send(codeAlreadyActive)
			return false
		}
	}
	s.send(codeAttemptsExceeded)
	return false
}

func (s *Session) createAccount() bool {
	if s.send("Please create a username:") != nil {
		return false
	}
	username, err := s.recv()
	if err != nil {
		return false
	}
	if s.auth.FindUser(username) {
		log.Printf("[SESSION] %s create rejected, username %q taken", s.id, username)
		s.send(codeUsernameTaken)
		return false
	}

	if s.send("Please enter a password:") != nil {
		return false
	}
	password, err := s.recv()
	if err != nil {
		return false
	}

	user, err := s.auth.CreateAccount(username, password, s.id)
	if err != nil {
		if errors.Is(err, services.ErrUsernameTaken) {
			s.send(codeUsernameTaken)
		} else {
			s.send("Could not create account: username must be 3-32 letters or digits and password at least 6 characters.")
		}
		return false
	}
	s.user = user
	return true
}

func (s *Session) chooseMode() bool {
	if s.send("Successfully logged in!\nWould you like to use natural language prompts today? (y/n)") != nil {
		return false
	}
	resp, err := s.recv()
	if err != nil {
		return false
	}
	s.nl = resp == "y" || resp == "yes"

	welcome := "Welcome " + s.user.Username + "!\nWhat would you like to do today?"
	if !s.nl {
		welcome += optionsMessage
	}
	return s.send(welcome) == nil
}

func (s *Session) loop(ctx context.Context) {
	for {
		req, err := s.recv()
		if err != nil {
			return
		}
		if s.nl {
			err = s.handleNatural(ctx, req)
		} else {
			err = s.handleMenu(req)
		}
		if err != nil {
			return
		}
	}
}

// followUp is appended to every action's outcome so the conversation never
// stalls without a next step on offer.
func (s *Session) followUp() string {
	msg := "What else can I help you with today?"
	if !s.nl {
		msg += optionsMessage
	}
	return msg
}

func (s *Session) handleMenu(req string) error {
	if req == "" {
		return s.send("Invalid option, please try again.")
	}
	switch req[0] {
	case '1':
		return s.doBalance()
	case '2':
		return s.doDeposit(models.AmountUnspecified)
	case '3':
		return s.doWithdraw(models.AmountUnspecified)
	case '4':
		return s.doTransfer(models.AmountUnspecified)
	case '5':
		return s.doHistory()
	case '6':
		return s.doSwitchMode()
	case '7':
		return s.doLogout()
	default:
		return s.send("Invalid option, please try again.")
	}
}

func (s *Session) handleNatural(ctx context.Context, text string) error {
	resolved, err := s.resolver.Resolve(ctx, text)
	if err != nil {
		log.Printf("[SESSION] %s intent resolution failed: %v", s.id, err)
		return s.send("Sorry I didn't get that. Please try again.\nWhat can I help you with?")
	}

	amount := int64(models.AmountUnspecified)
	if resolved.Amount > 0 {
		amount = models.DollarsToCents(resolved.Amount)
	}

	switch resolved.Action {
	case models.ActionDeposit:
		return s.doDeposit(amount)
	case models.ActionWithdraw:
		return s.doWithdraw(amount)
	case models.ActionTransfer:
		return s.doTransfer(amount)
	case models.ActionBalance:
		return s.doBalance()
	case models.ActionHistory:
		return s.doHistory()
	case models.ActionBackwards:
		return s.doSwitchMode()
	case models.ActionOptions:
		return s.send("You can withdraw, deposit, transfer, check your balance, change back to normal inputs, or view your transaction history.\nWhat would you like to do today?")
	case models.ActionLogout:
		return s.doLogout()
	default:
		return s.send("Sorry I didn't get that. Please try again.\nWhat can I help you with?")
	}
}

// promptAmount asks for an amount and gives one corrected retry before
// giving up. ok is false when the action should be abandoned; the follow-up
// message has already been sent in that case.
func (s *Session) promptAmount(question string) (amount int64, ok bool, err error) {
	for attempt := 0; attempt < 2; attempt++ {
		if err := s.send(question); err != nil {
			return 0, false, err
		}
		raw, err := s.recv()
		if err != nil {
			return 0, false, err
		}
		parsed, perr := models.ParseAmount(models.SanitizeAmount(raw))
		if perr == nil && parsed > 0 {
			return parsed, true, nil
		}
	}
	return 0, false, s.send("Invalid value.\n" + s.followUp())
}

// confirm asks a yes/no question before any money moves. Anything other
// than an affirmative answer counts as "no".
func (s *Session) confirm(question string) (bool, error) {
	if err := s.send(question); err != nil {
		return false, err
	}
	resp, err := s.recv()
	if err != nil {
		return false, err
	}
	return resp == "y" || resp == "yes", nil
}

func (s *Session) doDeposit(amount int64) error {
	if amount <= 0 {
		var ok bool
		var err error
		amount, ok, err = s.promptAmount("How much would you like to deposit?")
		if !ok {
			return err
		}
	}

	yes, err := s.confirm("Are you sure you want to deposit " + models.FormatAmount(amount) + "? (y/n)")
	if err != nil {
		return err
	}
	if !yes {
		return s.send("Deposit cancelled.\n" + s.followUp())
	}

	balance, err := s.engine.Deposit(s.user, amount)
	if err != nil {
		log.Printf("[SESSION] %s deposit failed: %v", s.id, err)
		return s.send("Deposit failed, please try again later.\n" + s.followUp())
	}
	return s.send("Deposit successful. New balance: " + models.FormatAmount(balance) + "\n" + s.followUp())
}

func (s *Session) doWithdraw(amount int64) error {
	if amount <= 0 {
		var ok bool
		var err error
		amount, ok, err = s.promptAmount("How much would you like to withdraw?")
		if !ok {
			return err
		}
	}

	yes, err := s.confirm("Are you sure you want to withdraw " + models.FormatAmount(amount) + "? (y/n)")
	if err != nil {
		return err
	}
	if !yes {
		return s.send("Withdrawal cancelled.\n" + s.followUp())
	}

	balance, err := s.engine.Withdraw(s.user, amount)
	if err != nil {
		if errors.Is(err, services.ErrInsufficientFunds) {
			return s.send("Insufficient funds.\n" + s.followUp())
		}
		log.Printf("[SESSION] %s withdrawal failed: %v", s.id, err)
		return s.send("Withdrawal failed, please try again later.\n" + s.followUp())
	}
	return s.send("Withdrawal successful. New balance: " + models.FormatAmount(balance) + "\n" + s.followUp())
}

// doTransfer resolves the recipient channel first: an existing user must
// name a known account, an external recipient must give a valid email
// address.
func (s *Session) doTransfer(amount int64) error {
	if err := s.send("Who would you like to transfer to?\n1. Existing user\n2. External user (by email)"); err != nil {
		return err
	}
	choice, err := s.recv()
	if err != nil {
		return err
	}
	if choice != "1" && choice != "2" {
		return s.send("Transfer cancelled.\n" + s.followUp())
	}

	prompt := "Please enter the recipient's username:"
	if choice == "2" {
		prompt = "Please enter the recipient's email:"
	}
	if err := s.send(prompt); err != nil {
		return err
	}
	recipient, err := s.recv()
	if err != nil {
		return err
	}

	var dst *models.User
	if choice == "1" {
		if !usernamePattern.MatchString(recipient) {
			return s.send("Recipient does not exist.\n" + s.followUp())
		}
		if recipient == s.user.Username {
			return s.send("You cannot transfer to yourself.\n" + s.followUp())
		}
		dst = s.auth.Recipient(recipient)
		if dst == nil {
			return s.send("Recipient does not exist.\n" + s.followUp())
		}
	} else {
		if s.validate.Var(recipient, "required,email") != nil {
			return s.send("That does not look like a valid email address.\n" + s.followUp())
		}
	}

	if amount <= 0 {
		var ok bool
		var err error
		amount, ok, err = s.promptAmount("How much would you like to transfer to " + recipient + "?")
		if !ok {
			return err
		}
	}

	yes, err := s.confirm("Are you sure you want to transfer " + models.FormatAmount(amount) + " to " + recipient + "? (y/n)")
	if err != nil {
		return err
	}
	if !yes {
		return s.send("Transfer cancelled.\n" + s.followUp())
	}

	balance, err := s.engine.Transfer(s.user, dst, recipient, amount)
	if err != nil {
		if errors.Is(err, services.ErrInsufficientFunds) {
			return s.send("Transfer to " + recipient + " failed. Insufficient funds!\n" + s.followUp())
		}
		log.Printf("[SESSION] %s transfer failed: %v", s.id, err)
		return s.send("Transfer failed, please try again later.\n" + s.followUp())
	}
	return s.send("Transfer to " + recipient + " successful. New balance: " + models.FormatAmount(balance) + "\n" + s.followUp())
}

func (s *Session) doBalance() error {
	balance := s.engine.Balance(s.user)
	return s.send("Your balance is: " + models.FormatAmount(balance) + "\n" + s.followUp())
}

func (s *Session) doHistory() error {
	records := s.engine.History(s.user)
	if len(records) == 0 {
		return s.send("You have no transactions.\n" + s.followUp())
	}
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, r.String())
	}
	return s.send(s.user.Username + "'s Transaction Log:\n" + strings.Join(lines, "\n") + "\n" + s.followUp())
}

// doSwitchMode toggles between menu and natural-language input. Leaving
// natural-language mode asks for confirmation first.
func (s *Session) doSwitchMode() error {
	if !s.nl {
		s.nl = true
		return s.send("What can I help you with today?")
	}

	yes, err := s.confirm("Are you sure you would like to switch to regular prompts? (y/n)")
	if err != nil {
		return err
	}
	if yes {
		s.nl = false
		return s.send("What would you like to do today?" + optionsMessage)
	}
	return s.send("What else can I help you with today?")
}

func (s *Session) doLogout() error {
	s.send(codeLogout)
	log.Printf("[SESSION] %s user %q logged out", s.id, s.user.Username)
	return errClosed
}
