package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/SecuShare/filevault/pkg/logger"
)

const (
	defaultNotifyWorkers     = 2
	defaultNotifyQueueSize   = 128
	defaultNotifySendTimeout = 10 * time.Second
)

// ContactResolver finds the address a user is notified at.
type ContactResolver interface {
	GetContactEmail(ctx context.Context, userID string) (string, error)
}

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type NotifierConfig struct {
	Disabled    bool
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

type breachJob struct {
	userID    string
	limitName string
	details   string
}

// BreachNotifier emails users when one of their limits rejects a request.
// Delivery happens on background workers; Notify never waits for it. The
// same breach reported twice is sent twice.
type BreachNotifier struct {
	cfg      NotifierConfig
	contacts ContactResolver
	mailer   Mailer
	log      zerolog.Logger

	jobs     chan breachJob
	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewBreachNotifier(cfg NotifierConfig, contacts ContactResolver, mailer Mailer) *BreachNotifier {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultNotifyWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultNotifyQueueSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultNotifySendTimeout
	}

	n := &BreachNotifier{
		cfg:      cfg,
		contacts: contacts,
		mailer:   mailer,
		log:      logger.Component("limit_notifier"),
		stop:     make(chan struct{}),
	}
	if cfg.Disabled {
		return n
	}

	n.jobs = make(chan breachJob, cfg.QueueSize)
	for i := 0; i < cfg.Workers; i++ {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.worker()
		}()
	}
	return n
}

// Notify queues a breach report. It returns immediately; when the queue is
// full or the notifier is stopped the report is dropped.
func (n *BreachNotifier) Notify(userID, limitName, details string) {
	if n.cfg.Disabled || n.jobs == nil {
		notifications.WithLabelValues("disabled").Inc()
		return
	}

	job := breachJob{userID: userID, limitName: limitName, details: details}

	select {
	case <-n.stop:
		notifications.WithLabelValues("dropped").Inc()
		n.log.Warn().Str("user_id", userID).Msg("Limit notifier is stopped; dropping notification")
		return
	default:
	}

	select {
	case n.jobs <- job:
	default:
		notifications.WithLabelValues("dropped").Inc()
		n.log.Warn().
			Str("user_id", userID).
			Str("limit", limitName).
			Msg("Limit notification queue is full; dropping notification")
	}
}

func (n *BreachNotifier) worker() {
	for {
		select {
		case <-n.stop:
			n.drain()
			return
		case job := <-n.jobs:
			n.deliver(job)
		}
	}
}

// drain delivers whatever is still queued when Stop is called.
func (n *BreachNotifier) drain() {
	for {
		select {
		case job := <-n.jobs:
			n.deliver(job)
		default:
			return
		}
	}
}

func (n *BreachNotifier) deliver(job breachJob) {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.SendTimeout)
	defer cancel()

	to, err := n.contacts.GetContactEmail(ctx, job.userID)
	if err != nil || to == "" {
		notifications.WithLabelValues("no_contact").Inc()
		n.log.Warn().Err(err).Str("user_id", job.userID).Msg("No contact address for limit notification")
		return
	}

	subject := fmt.Sprintf("Your %s limit was reached", job.limitName)
	body := job.details + "\n\nDelete unused items or contact an administrator to raise your limit."
	if err := n.mailer.Send(ctx, to, subject, body); err != nil {
		notifications.WithLabelValues("failed").Inc()
		n.log.Warn().
			Err(err).
			Str("user_id", job.userID).
			Str("limit", job.limitName).
			Msg("Failed to send limit notification")
		return
	}
	notifications.WithLabelValues("sent").Inc()
}

// Stop rejects new reports, delivers the ones already queued and waits for
// the workers to exit. Each delivery is bounded by SendTimeout.
func (n *BreachNotifier) Stop() {
	n.stopOnce.Do(func() {
		close(n.stop)
		n.wg.Wait()
	})
}
