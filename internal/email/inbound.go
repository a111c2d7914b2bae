package email

import (
	"context"
	"regexp"
	"time"

	"presales_backend/platform/config"
	"presales_backend/platform/logger"

	imap "github.com/BrianLeishman/go-imap"
	"github.com/google/uuid"
)

// ReplyResolver is notified when an inbound reply is matched to a lead.
// The orchestrator implements this.
type ReplyResolver interface {
	ResolveEmailReply(ctx context.Context, leadID uuid.UUID, excerpt string) error
}

var leadTagRe = regexp.MustCompile(`\[Lead:([0-9a-fA-F-]{36})\]`)

// InboundPoller watches an IMAP folder for replies to outreach emails and
// resolves the matching leads.
type InboundPoller struct {
	host     string
	port     int
	username string
	password string
	folder   string
	interval time.Duration
	resolver ReplyResolver
	log      *logger.Logger

	// UIDs handled this process lifetime. Re-processing after a restart is
	// harmless: resolving an already-answered lead is a no-op.
	seen map[int]struct{}
}

// NewInboundPoller builds the poller. Returns nil when IMAP is not configured.
func NewInboundPoller(cfg config.IMAPConfig, resolver ReplyResolver, log *logger.Logger) *InboundPoller {
	if !cfg.IsIMAPEnabled() {
		return nil
	}
	interval := cfg.GetIMAPPollInterval()
	if interval <= 0 {
		interval = time.Minute
	}
	return &InboundPoller{
		host:     cfg.GetIMAPHost(),
		port:     cfg.GetIMAPPort(),
		username: cfg.GetIMAPUsername(),
		password: cfg.GetIMAPPassword(),
		folder:   cfg.GetIMAPFolder(),
		interval: interval,
		resolver: resolver,
		log:      log,
		seen:     make(map[int]struct{}),
	}
}

// Run polls the inbox until the context is cancelled.
func (p *InboundPoller) Run(ctx context.Context) {
	if p == nil {
		return
	}
	p.log.Info("email inbound poller started", "folder", p.folder, "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("email inbound poller stopped")
			return
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil {
				p.log.Error("email inbound poll failed", "error", err)
			}
		}
	}
}

func (p *InboundPoller) pollOnce(ctx context.Context) error {
	im, err := imap.New(p.username, p.password, p.host, p.port)
	if err != nil {
		return err
	}
	defer func() {
		_ = im.Close()
	}()

	if err := im.SelectFolder(p.folder); err != nil {
		return err
	}

	uids, err := im.GetUIDs("UNSEEN")
	if err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}

	fresh := uids[:0]
	for _, uid := range uids {
		if _, ok := p.seen[uid]; !ok {
			fresh = append(fresh, uid)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	emails, err := im.GetEmails(fresh...)
	if err != nil {
		return err
	}

	for uid, msg := range emails {
		p.seen[uid] = struct{}{}
		if msg == nil {
			continue
		}

		match := leadTagRe.FindStringSubmatch(msg.Subject)
		if match == nil {
			continue
		}
		leadID, err := uuid.Parse(match[1])
		if err != nil {
			continue
		}

		excerpt := msg.Text
		if len(excerpt) > 500 {
			excerpt = excerpt[:500]
		}

		if err := p.resolver.ResolveEmailReply(ctx, leadID, excerpt); err != nil {
			p.log.Error("failed to resolve email reply", "error", err, "leadId", leadID)
			continue
		}
		p.log.Info("email reply matched to lead", "leadId", leadID, "uid", uid)
	}

	return nil
}
