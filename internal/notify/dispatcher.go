package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/account/entity"
)

const defaultTimeout = 10 * time.Second

// Dispatcher hands emails to a Gateway on their own goroutine, detached from
// the request's cancellation and bounded by a timeout. Failures and panics
// are logged and never reach the caller.
type Dispatcher struct {
	gw      Gateway
	timeout time.Duration
	logger  *zap.SugaredLogger
	wg      sync.WaitGroup
}

func NewDispatcher(gw Gateway, timeout time.Duration, logger *zap.SugaredLogger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Dispatcher{gw: gw, timeout: timeout, logger: logger}
}

func (d *Dispatcher) SendVerificationEmail(ctx context.Context, a *entity.Account) {
	d.dispatch(ctx, "verification", messageFor(a), d.gw.SendVerificationEmail)
}

func (d *Dispatcher) SendPasswordResetEmail(ctx context.Context, a *entity.Account) {
	d.dispatch(ctx, "password_reset", messageFor(a), d.gw.SendPasswordResetEmail)
}

// Wait blocks until every dispatched email has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, kind string, msg Message, send func(context.Context, Message) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Errorw("email send panicked", "kind", kind, "account_id", msg.AccountID, "panic", r)
			}
		}()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := send(sendCtx, msg); err != nil {
			d.logger.Warnw("email send failed", "kind", kind, "account_id", msg.AccountID, "err", err)
		}
	}()
}
