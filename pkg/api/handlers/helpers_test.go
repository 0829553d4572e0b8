package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/plannerhq/vendorbook/pkg/backfill"
	"github.com/plannerhq/vendorbook/pkg/candidates"
	"github.com/plannerhq/vendorbook/pkg/detection"
	"github.com/plannerhq/vendorbook/pkg/enrichment"
	"github.com/plannerhq/vendorbook/pkg/export"
	"github.com/plannerhq/vendorbook/pkg/livesync"
	"github.com/plannerhq/vendorbook/pkg/mailbox"
	"github.com/plannerhq/vendorbook/pkg/projects"
	"github.com/plannerhq/vendorbook/pkg/proposals"
	"github.com/plannerhq/vendorbook/pkg/scorer"
	"github.com/plannerhq/vendorbook/pkg/signals"
	"github.com/plannerhq/vendorbook/pkg/store/memory"
	"github.com/plannerhq/vendorbook/pkg/suppliers"
	"github.com/plannerhq/vendorbook/pkg/threads"
)

const testUserID = 1

// testEnv wires the full pipeline against the memory store and fakes,
// the same shape main assembles for dev mode.
type testEnv struct {
	store      *memory.Store
	mail       *mailbox.FakeClient
	classifier *scorer.FakeClassifier
	suppliers  *suppliers.Service
	projects   *projects.Service
	candidates *candidates.Service
	proposals  *proposals.Service
	threads    *threads.Service
	signals    *signals.Service
	backfill   *backfill.Service
	enrichment *enrichment.Service
	export     *export.Service
	livesync   *livesync.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := memory.New()
	mail := mailbox.NewFakeClient()
	classifier := scorer.NewFakeClassifier()

	supplierSvc := suppliers.NewService(st, st)
	projectSvc := projects.NewService(st)
	candidateSvc := candidates.NewService(st, supplierSvc, nil)
	proposalSvc := proposals.NewService(st, supplierSvc, 0)
	threadSvc := threads.NewService(st, st)
	signalSvc := signals.NewService(st, nil)
	engine := detection.NewEngine(0.45)

	return &testEnv{
		store:      st,
		mail:       mail,
		classifier: classifier,
		suppliers:  supplierSvc,
		projects:   projectSvc,
		candidates: candidateSvc,
		proposals:  proposalSvc,
		threads:    threadSvc,
		signals:    signalSvc,
		backfill:   backfill.NewService(st, st, candidateSvc, mail, nil, 100, 3),
		enrichment: enrichment.NewService(candidateSvc, st, classifier, nil, 0.75, 10, nil),
		export:     export.NewService(st, candidateSvc, supplierSvc, t.TempDir(), nil),
		livesync:   livesync.NewService(mail, st, st, signalSvc, engine, proposalSvc, supplierSvc, nil, 24*time.Hour, nil),
	}
}

// newJSONContext builds an echo context for one handler call. An empty
// body makes a bodyless request.
func newJSONContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func outboundMsg(id, threadID, toEmail, toName, subject, body string, sentAt time.Time) mailbox.Message {
	return mailbox.Message{
		ID:        id,
		ThreadID:  threadID,
		From:      mailbox.Address{Name: "Dana Planner", Email: "dana@plannerhq.test"},
		To:        []mailbox.Address{{Name: toName, Email: toEmail}},
		Subject:   subject,
		Body:      body,
		Direction: mailbox.DirectionOutbound,
		SentAt:    sentAt,
	}
}

func inboundMsg(id, threadID, fromEmail, fromName, subject, body string, sentAt time.Time) mailbox.Message {
	return mailbox.Message{
		ID:        id,
		ThreadID:  threadID,
		From:      mailbox.Address{Name: fromName, Email: fromEmail},
		To:        []mailbox.Address{{Name: "Dana Planner", Email: "dana@plannerhq.test"}},
		Subject:   subject,
		Body:      body,
		Direction: mailbox.DirectionInbound,
		SentAt:    sentAt,
	}
}
