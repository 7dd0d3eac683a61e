package relay

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/weiwei-tsao/form-relay/apps/api/internal/platform/logging"
	"github.com/weiwei-tsao/form-relay/apps/api/internal/platform/metrics"
	"github.com/weiwei-tsao/form-relay/apps/api/pkg/model"
	"github.com/weiwei-tsao/form-relay/apps/api/pkg/util"
)

// Result labels used for metrics and outcome counters.
const (
	ResultAccepted           = "accepted"
	ResultRejected           = "rejected"
	ResultIndeterminate      = "indeterminate"
	ResultVerificationFailed = "verification_failed"
	ResultValidationFailed   = "validation_failed"
	ResultUnexpected         = "unexpected"
)

// Verifier abstracts the human-verification service for testability.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) model.VerificationOutcome
}

// Relayer posts a submission to the form processor and can issue confirmation hops.
type Relayer interface {
	Follower
	Relay(ctx context.Context, fields map[string]string) model.RelayAttempt
}

// OutcomeRecorder keeps aggregate counts of results. It never sees submission content.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, result string) error
}

// Options configures an Orchestrator.
type Options struct {
	Policy Policy
	// Fields maps a submission to the form processor's field names.
	Fields   func(req model.SubmissionRequest) map[string]string
	Recorder OutcomeRecorder
	Logger   *zap.Logger
}

// Result is what a successful submission produced.
type Result struct {
	Email        string
	Verification model.VerificationOutcome
	Verdict      model.RelayVerdict
}

// Orchestrator runs verification, relay and redirect interpretation in order.
type Orchestrator struct {
	verifier    Verifier
	relayer     Relayer
	interpreter *Interpreter
	fields      func(req model.SubmissionRequest) map[string]string
	recorder    OutcomeRecorder
	logger      *zap.Logger
}

func NewOrchestrator(verifier Verifier, relayer Relayer, opts Options) *Orchestrator {
	fields := opts.Fields
	if fields == nil {
		fields = func(req model.SubmissionRequest) map[string]string {
			return map[string]string{"email": req.Email}
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		verifier:    verifier,
		relayer:     relayer,
		interpreter: NewInterpreter(relayer, opts.Policy),
		fields:      fields,
		recorder:    opts.Recorder,
		logger:      logger,
	}
}

// Handle processes one submission to completion. Failures are returned as *Error.
func (o *Orchestrator) Handle(ctx context.Context, req model.SubmissionRequest) (res Result, err error) {
	log := logging.FromContext(ctx, o.logger).With(zap.String("email_hash", util.HashEmail(req.Email)))

	defer func() {
		if p := recover(); p != nil {
			log.Error("submission pipeline panicked", zap.Any("panic", p))
			o.record(ctx, log, ResultUnexpected)
			res, err = Result{}, UnexpectedError(fmt.Errorf("panic: %v", p))
		}
	}()

	if strings.TrimSpace(req.VerificationToken) == "" {
		o.record(ctx, log, ResultValidationFailed)
		return Result{}, ValidationError(MsgMissingToken)
	}
	if strings.TrimSpace(req.Email) == "" {
		o.record(ctx, log, ResultValidationFailed)
		return Result{}, ValidationError(MsgMissingEmail)
	}

	res.Email = req.Email

	start := time.Now()
	res.Verification = o.verifier.Verify(ctx, req.VerificationToken, req.RemoteIP)
	metrics.ObserveUpstream("verify", strconv.FormatBool(res.Verification.Passed), time.Since(start))
	if !res.Verification.Passed {
		log.Info("verification failed", zap.ByteString("details", res.Verification.RawResponse))
		o.record(ctx, log, ResultVerificationFailed)
		return res, &Error{Kind: KindVerification, Message: MsgVerificationFailed, Details: res.Verification.RawResponse}
	}

	fields := o.fields(req)
	first := o.relayer.Relay(ctx, fields)
	metrics.ObserveUpstream("relay", strconv.Itoa(first.StatusCode), time.Duration(first.DurationMs)*time.Millisecond)

	res.Verdict = o.interpreter.Interpret(ctx, first, fields)
	for _, hop := range res.Verdict.Hops[1:] {
		metrics.ObserveUpstream("confirm", strconv.Itoa(hop.StatusCode), time.Duration(hop.DurationMs)*time.Millisecond)
	}
	outcome := res.Verdict.Outcome.String()
	metrics.ObserveHops(outcome, len(res.Verdict.Hops))

	log = log.With(
		zap.String("outcome", outcome),
		zap.String("reason", res.Verdict.Reason),
		zap.Int("hops", len(res.Verdict.Hops)),
		zap.Int("status", first.StatusCode),
	)
	o.record(ctx, log, outcome)

	if !res.Verdict.Accepted() {
		log.Warn("relay failed", zap.Any("hop_chain", res.Verdict.Hops))
		verdict := res.Verdict
		return res, &Error{Kind: KindRelay, Message: MsgSubmissionFailed, Verdict: &verdict}
	}
	log.Info("submission relayed")
	return res, nil
}

func (o *Orchestrator) record(ctx context.Context, log *zap.Logger, result string) {
	metrics.IncSubmission(result)
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordOutcome(ctx, result); err != nil {
		log.Warn("record outcome", zap.String("result", result), zap.Error(err))
	}
}
