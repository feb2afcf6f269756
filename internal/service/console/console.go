package console

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/greenconsole/internal/domain/models"
	"github.com/mamadbah2/greenconsole/internal/repository/credentials"
	"github.com/mamadbah2/greenconsole/pkg/clients/greenapi"
)

// ErrBusy indicates another gateway call is still in flight.
var ErrBusy = errors.New("call already in flight")

const busyNotice = "Please wait for the current request to complete"

// Journal records every envelope the console produces.
type Journal interface {
	Record(ctx context.Context, env models.Envelope) error
}

// Options tune optional console behaviour.
type Options struct {
	// Debug adds stack traces to error envelopes and enables the fixture form.
	Debug bool
	// Journal is optional; nil disables call journaling.
	Journal Journal
}

// Service turns validated form state into exactly one gateway call and a displayable outcome.
type Service struct {
	client   greenapi.Client
	store    credentials.Store
	journal  Journal
	debug    bool
	logger   *zap.Logger
	now      func() time.Time
	inFlight atomic.Bool
}

// NewService wires a new console instance.
func NewService(client greenapi.Client, store credentials.Store, opts Options, logger *zap.Logger) *Service {
	svc := &Service{
		client:  client,
		store:   store,
		journal: opts.Journal,
		debug:   opts.Debug,
		logger:  logger,
		now:     time.Now,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// Busy reports whether a call is currently in flight.
func (s *Service) Busy() bool {
	return s.inFlight.Load()
}

// Dispatch validates the form, issues the call for method and wraps the result.
// A call arriving while another is in flight is rejected before any other work.
// The returned error is ErrBusy or a *ValidationError when no call was made; gateway
// failures are reported through the error envelope instead. The envelope is
// journaled after the in-flight flag is released.
func (s *Service) Dispatch(ctx context.Context, method greenapi.Method, form models.Form) (models.Outcome, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Info("call rejected, another is in flight", zap.String("method", string(method)))
		return models.Outcome{Notice: models.Notice{Level: models.NoticeInfo, Message: busyNotice}}, ErrBusy
	}

	out, err := s.call(ctx, method, form)
	if out.Envelope != nil {
		s.record(ctx, *out.Envelope)
	}
	return out, err
}

// call runs one claimed dispatch and releases the in-flight flag on return.
func (s *Service) call(ctx context.Context, method greenapi.Method, form models.Form) (models.Outcome, error) {
	defer s.inFlight.Store(false)

	session, err := ValidateCredentials(form)
	if err != nil {
		return rejected(err), err
	}

	req, err := BuildRequest(method, form)
	if err != nil {
		return rejected(err), err
	}

	start := s.now()
	payload, err := s.client.Call(ctx, session.Credentials(), req)
	if err != nil {
		s.logger.Warn("gateway call failed",
			zap.String("method", string(method)),
			zap.Duration("duration", s.now().Sub(start)),
			zap.Error(err))

		env := s.errorEnvelope(method, err)
		return models.Outcome{
			Envelope: &env,
			Notice:   models.Notice{Level: models.NoticeError, Message: fmt.Sprintf("%s failed: %s", method, err)},
		}, nil
	}

	s.logger.Info("gateway call completed",
		zap.String("method", string(method)),
		zap.Duration("duration", s.now().Sub(start)))

	env := models.Envelope{
		Timestamp: s.timestamp(),
		Method:    string(method),
		Status:    models.StatusSuccess,
		Data:      payload,
	}
	return models.Outcome{
		Envelope: &env,
		Notice:   models.Notice{Level: models.NoticeSuccess, Message: fmt.Sprintf("%s completed successfully", method)},
	}, nil
}

// BuildRequest applies the method-specific field checks and builds the gateway request.
func BuildRequest(method greenapi.Method, form models.Form) (greenapi.Request, error) {
	phone := strings.TrimSpace(form.PhoneNumber)

	switch method {
	case greenapi.MethodGetSettings:
		return greenapi.GetSettings{}, nil
	case greenapi.MethodGetStateInstance:
		return greenapi.GetStateInstance{}, nil
	case greenapi.MethodSendMessage:
		message := strings.TrimSpace(form.MessageText)
		if err := requireFields(form, models.FieldMessageText,
			"Please fill in valid phone number and message",
			"Phone number and message are required"); err != nil {
			return nil, err
		}
		return greenapi.SendMessage{ChatID: greenapi.ChatID(phone), Message: message}, nil
	case greenapi.MethodSendFileByURL:
		fileURL := strings.TrimSpace(form.FileURL)
		if err := requireFields(form, models.FieldFileURL,
			"Please fill in valid phone number and file URL",
			"Phone number and file URL are required"); err != nil {
			return nil, err
		}
		return greenapi.SendFileByURL{
			ChatID:   greenapi.ChatID(phone),
			URLFile:  fileURL,
			FileName: ExtractFileName(fileURL),
		}, nil
	}

	return nil, &ValidationError{Message: fmt.Sprintf("unknown method: %s", method)}
}

// requireFields checks the phone number plus one method-specific field: both must be
// valid, then both must be non-empty.
func requireFields(form models.Form, field models.Field, invalidMsg, missingMsg string) error {
	phone := Validate(models.FieldPhoneNumber, form.PhoneNumber)
	other := Validate(field, form.Value(field))
	if !phone.Valid || !other.Valid {
		return &ValidationError{Message: invalidMsg, Fields: invalidOnly(phone, other)}
	}

	if strings.TrimSpace(form.PhoneNumber) == "" || strings.TrimSpace(form.Value(field)) == "" {
		return &ValidationError{Message: missingMsg}
	}
	return nil
}

// LoadCredentials returns the stored credentials. Storage failures are logged and
// reported as absent data.
func (s *Service) LoadCredentials(ctx context.Context) models.Credentials {
	creds, found, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load stored credentials", zap.Error(err))
		return models.Credentials{}
	}
	if !found {
		return models.Credentials{}
	}
	return creds
}

// SaveCredentials replaces the stored record. Failures are logged, never surfaced.
func (s *Service) SaveCredentials(ctx context.Context, creds models.Credentials) {
	if err := s.store.Save(ctx, creds.Trimmed()); err != nil {
		s.logger.Warn("failed to save credentials", zap.Error(err))
	}
}

// Notify sends text to phone with the stored credentials through the regular
// dispatch path, so it shares the in-flight guard and the journal with page calls.
func (s *Service) Notify(ctx context.Context, phone, text string) error {
	creds := s.LoadCredentials(ctx)
	form := models.Form{
		InstanceID:  creds.InstanceID,
		APIToken:    creds.APIToken,
		PhoneNumber: phone,
		MessageText: text,
	}

	out, err := s.Dispatch(ctx, greenapi.MethodSendMessage, form)
	if err != nil {
		return fmt.Errorf("notify %s: %w", phone, err)
	}
	if out.Envelope != nil && out.Envelope.Error != nil {
		return fmt.Errorf("notify %s: %s", phone, out.Envelope.Error.Message)
	}
	return nil
}

// DebugEnabled reports whether diagnostic mode is on.
func (s *Service) DebugEnabled() bool {
	return s.debug
}

// Fixture returns the auto-fill form used in diagnostic mode.
func Fixture() models.Form {
	return models.Form{
		InstanceID:  "1101000000",
		APIToken:    "test-token-1234567890",
		PhoneNumber: "79001234567",
		MessageText: "Hello from Green API Test!",
		FileURL:     "https://example.com/test.png",
	}
}

func (s *Service) errorEnvelope(method greenapi.Method, err error) models.Envelope {
	envErr := &models.EnvelopeError{Message: err.Error(), Name: errorName(err)}
	if s.debug {
		envErr.Stack = string(debug.Stack())
	}
	return models.Envelope{
		Timestamp: s.timestamp(),
		Method:    string(method),
		Status:    models.StatusError,
		Error:     envErr,
	}
}

func (s *Service) record(ctx context.Context, env models.Envelope) {
	if s.journal == nil {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.journal.Record(ctxWithTimeout, env); err != nil {
		s.logger.Warn("failed to journal envelope", zap.String("method", env.Method), zap.Error(err))
	}
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func errorName(err error) string {
	var (
		httpErr  *greenapi.HTTPError
		parseErr *greenapi.ParseError
		netErr   *greenapi.NetworkError
	)
	switch {
	case errors.As(err, &httpErr):
		return "HTTPError"
	case errors.As(err, &parseErr):
		return "ParseError"
	case errors.As(err, &netErr):
		return "NetworkError"
	}
	return "Error"
}

func rejected(err error) models.Outcome {
	return models.Outcome{Notice: models.Notice{Level: models.NoticeError, Message: err.Error()}}
}
