package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/idempotency"
)

func nextFingerprint(session, key string) idempotency.Fingerprint {
	return idempotency.Fingerprint{
		Session:  domain.SessionID(session),
		Key:      idempotency.Key(key),
		Route:    "/sessions/{sessionId}/next",
		BodyHash: "abc123",
	}
}

func TestStore_GetReturnsCopyOfBody(t *testing.T) {
	t.Parallel()

	s := NewStore(0)
	fp := nextFingerprint("s1", "k1")
	body := []byte(`{"outcome":"ADVANCED"}`)
	if err := s.Put(context.Background(), fp, idempotency.Record{
		StatusCode:  200,
		ContentType: "application/json",
		Body:        body,
		CreatedAt:   time.Unix(123, 0).UTC(),
	}); err != nil {
		t.Fatalf("Put() err=%v", err)
	}
	body[0] = 'X'

	got, ok, err := s.Get(context.Background(), fp)
	if err != nil || !ok {
		t.Fatalf("Get() ok=%v err=%v", ok, err)
	}
	if string(got.Body) != `{"outcome":"ADVANCED"}` {
		t.Fatalf("body=%s", got.Body)
	}
	got.Body[0] = 'Y'

	again, _, _ := s.Get(context.Background(), fp)
	if again.Body[0] != '{' {
		t.Fatalf("stored body mutated through Get result: %s", again.Body)
	}
}

func TestStore_RecordsExpire(t *testing.T) {
	t.Parallel()

	s := NewStore(10 * time.Millisecond)
	fp := nextFingerprint("s1", "k1")
	if err := s.Put(context.Background(), fp, idempotency.Record{StatusCode: 200}); err != nil {
		t.Fatalf("Put() err=%v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok, err := s.Get(context.Background(), fp); err != nil || ok {
		t.Fatalf("Get() after retention ok=%v err=%v", ok, err)
	}
}
