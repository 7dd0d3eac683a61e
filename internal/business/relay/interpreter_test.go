package relay

import (
	"context"
	"net/http"
	"testing"

	"github.com/weiwei-tsao/form-relay/apps/api/pkg/model"
)

type followCall struct {
	method string
	target string
	fields map[string]string
}

// scriptedFollower returns its attempts in order and records every call.
type scriptedFollower struct {
	attempts []model.RelayAttempt
	calls    []followCall
}

func (f *scriptedFollower) Follow(ctx context.Context, method, target string, fields map[string]string) model.RelayAttempt {
	f.calls = append(f.calls, followCall{method: method, target: target, fields: fields})
	if len(f.calls) > len(f.attempts) {
		return model.RelayAttempt{Method: method, URL: target, Error: "script exhausted"}
	}
	a := f.attempts[len(f.calls)-1]
	a.Method, a.URL = method, target
	return a
}

const processURL = "https://keap.app/app/form/process/abc"

func post(status int, location string) model.RelayAttempt {
	return model.RelayAttempt{Method: http.MethodPost, URL: processURL, StatusCode: status, LocationHeader: location}
}

func TestClassifyWithoutConfirmation(t *testing.T) {
	cases := []struct {
		name  string
		first model.RelayAttempt
		want  model.Outcome
	}{
		{"301 with location", post(301, "https://x/thanks"), model.OutcomeAccepted},
		{"302 with location", post(302, "https://x/thanks"), model.OutcomeAccepted},
		{"303 with location", post(303, "https://x/thanks"), model.OutcomeAccepted},
		{"307 with location", post(307, "https://x/thanks"), model.OutcomeAccepted},
		{"308 with location", post(308, "https://x/thanks"), model.OutcomeAccepted},
		{"200", post(200, ""), model.OutcomeAccepted},
		{"204", post(204, ""), model.OutcomeAccepted},
		{"302 without location", post(302, ""), model.OutcomeRejected},
		{"304 with location", post(304, "https://x/thanks"), model.OutcomeRejected},
		{"300 with location", post(300, "https://x/thanks"), model.OutcomeRejected},
		{"400", post(400, ""), model.OutcomeRejected},
		{"404 with location", post(404, "https://x/thanks"), model.OutcomeRejected},
		{"500", post(500, ""), model.OutcomeRejected},
		{"503", post(503, ""), model.OutcomeRejected},
		{"transport failure", model.RelayAttempt{Method: http.MethodPost, URL: processURL}, model.OutcomeRejected},
		{"informational", post(101, ""), model.OutcomeRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &scriptedFollower{}
			got := NewInterpreter(f, Policy{}).Interpret(context.Background(), tc.first, nil)
			if got.Outcome != tc.want {
				t.Fatalf("got %s (%s), want %s", got.Outcome, got.Reason, tc.want)
			}
			if len(got.Hops) != 1 || len(f.calls) != 0 {
				t.Fatalf("no confirmation hop expected, hops=%d calls=%d", len(got.Hops), len(f.calls))
			}
		})
	}
}

func TestServerErrorRejectedUnderEveryPolicy(t *testing.T) {
	for _, confirm := range []bool{false, true} {
		f := &scriptedFollower{}
		got := NewInterpreter(f, Policy{Confirm: confirm}).Interpret(context.Background(), post(500, "https://x/thanks"), nil)
		if got.Outcome != model.OutcomeRejected {
			t.Fatalf("confirm=%v: expected rejected, got %s", confirm, got.Outcome)
		}
		if len(f.calls) != 0 {
			t.Fatalf("confirm=%v: 500 must not trigger a follow-up", confirm)
		}
	}
}

func TestConfirmationEqualsConfirmationHop(t *testing.T) {
	cases := []struct {
		name    string
		confirm model.RelayAttempt
		want    model.Outcome
	}{
		{"2xx accepted", model.RelayAttempt{StatusCode: 200}, model.OutcomeAccepted},
		{"404 rejected", model.RelayAttempt{StatusCode: 404}, model.OutcomeRejected},
		{"500 rejected", model.RelayAttempt{StatusCode: 500}, model.OutcomeRejected},
		{"transport failure rejected", model.RelayAttempt{StatusCode: 0}, model.OutcomeRejected},
		{"further redirect gives up", model.RelayAttempt{StatusCode: 302, LocationHeader: "/again"}, model.OutcomeIndeterminate},
		{"redirect without location rejected", model.RelayAttempt{StatusCode: 302}, model.OutcomeRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &scriptedFollower{attempts: []model.RelayAttempt{tc.confirm}}
			got := NewInterpreter(f, Policy{Confirm: true}).Interpret(context.Background(), post(303, "https://x/thanks"), nil)
			if got.Outcome != tc.want {
				t.Fatalf("got %s (%s), want %s", got.Outcome, got.Reason, tc.want)
			}
			if len(got.Hops) != 2 || len(f.calls) != 1 {
				t.Fatalf("expected exactly one confirmation hop, hops=%d calls=%d", len(got.Hops), len(f.calls))
			}
		})
	}
}

func TestConfirmationMethodFollowsStatus(t *testing.T) {
	fields := map[string]string{"inf_field_Email": "a@b.com"}
	cases := []struct {
		status     int
		wantMethod string
		wantBody   bool
	}{
		{301, http.MethodGet, false},
		{302, http.MethodGet, false},
		{303, http.MethodGet, false},
		{307, http.MethodPost, true},
		{308, http.MethodPost, true},
	}
	for _, tc := range cases {
		f := &scriptedFollower{attempts: []model.RelayAttempt{{StatusCode: 200}}}
		NewInterpreter(f, Policy{Confirm: true}).Interpret(context.Background(), post(tc.status, "https://x/thanks"), fields)
		if len(f.calls) != 1 {
			t.Fatalf("%d: expected one call, got %d", tc.status, len(f.calls))
		}
		call := f.calls[0]
		if call.method != tc.wantMethod {
			t.Errorf("%d: method %s, want %s", tc.status, call.method, tc.wantMethod)
		}
		if (call.fields != nil) != tc.wantBody {
			t.Errorf("%d: body repeated=%v, want %v", tc.status, call.fields != nil, tc.wantBody)
		}
	}
}

func TestConfirmationResolvesRelativeLocation(t *testing.T) {
	f := &scriptedFollower{attempts: []model.RelayAttempt{{StatusCode: 200}}}
	NewInterpreter(f, Policy{Confirm: true}).Interpret(context.Background(), post(302, "/app/form/thanks?x=1"), nil)
	if len(f.calls) != 1 || f.calls[0].target != "https://keap.app/app/form/thanks?x=1" {
		t.Fatalf("unexpected confirmation target: %+v", f.calls)
	}
}

func TestConfirmationRefusesUnsafeTargets(t *testing.T) {
	cases := []struct {
		name     string
		location string
		policy   Policy
	}{
		{"javascript scheme", "javascript:alert(1)", Policy{Confirm: true}},
		{"file scheme", "file:///etc/passwd", Policy{Confirm: true}},
		{"host outside allow-list", "https://evil.example/thanks", Policy{Confirm: true, AllowedHosts: []string{"keap.app"}}},
		{"unparseable", "http://[::1", Policy{Confirm: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &scriptedFollower{attempts: []model.RelayAttempt{{StatusCode: 200}}}
			got := NewInterpreter(f, tc.policy).Interpret(context.Background(), post(302, tc.location), nil)
			if got.Outcome != model.OutcomeRejected {
				t.Fatalf("got %s (%s), want rejected", got.Outcome, got.Reason)
			}
			if len(f.calls) != 0 {
				t.Fatalf("unsafe target must not be fetched")
			}
		})
	}
}

func TestAllowListAcceptsListedHost(t *testing.T) {
	f := &scriptedFollower{attempts: []model.RelayAttempt{{StatusCode: 200}}}
	got := NewInterpreter(f, Policy{Confirm: true, AllowedHosts: []string{" KEAP.app "}}).
		Interpret(context.Background(), post(302, "https://keap.app/thanks"), nil)
	if got.Outcome != model.OutcomeAccepted {
		t.Fatalf("got %s (%s), want accepted", got.Outcome, got.Reason)
	}
}

func TestRedirectChainIsBounded(t *testing.T) {
	for _, maxHops := range []int{1, 2, 3, 5} {
		loop := make([]model.RelayAttempt, 50)
		for i := range loop {
			loop[i] = model.RelayAttempt{StatusCode: 302, LocationHeader: "/loop"}
		}
		f := &scriptedFollower{attempts: loop}
		got := NewInterpreter(f, Policy{Confirm: true, MaxHops: maxHops}).
			Interpret(context.Background(), post(302, "/loop"), nil)
		if got.Outcome != model.OutcomeIndeterminate {
			t.Fatalf("max=%d: got %s, want indeterminate", maxHops, got.Outcome)
		}
		if len(got.Hops) != maxHops {
			t.Fatalf("max=%d: made %d hops", maxHops, len(got.Hops))
		}
	}
}

func TestLongerBudgetFollowsUntilSuccess(t *testing.T) {
	f := &scriptedFollower{attempts: []model.RelayAttempt{
		{StatusCode: 302, LocationHeader: "/step2"},
		{StatusCode: 200},
	}}
	got := NewInterpreter(f, Policy{Confirm: true, MaxHops: 3}).Interpret(context.Background(), post(303, "/step1"), nil)
	if got.Outcome != model.OutcomeAccepted || len(got.Hops) != 3 {
		t.Fatalf("got %s with %d hops", got.Outcome, len(got.Hops))
	}
	if f.calls[1].target != "https://keap.app/step2" {
		t.Fatalf("second hop should resolve against the first confirmation URL, got %s", f.calls[1].target)
	}
}

func TestDefaultMaxHops(t *testing.T) {
	if got := NewInterpreter(nil, Policy{}).Policy().MaxHops; got != DefaultMaxHops {
		t.Fatalf("expected default %d, got %d", DefaultMaxHops, got)
	}
}
