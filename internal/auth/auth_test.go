package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.Issue("subject-1", "ana@omegaop.com.br", "Ana")
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "subject-1", claims.Subject)
	assert.Equal(t, "ana@omegaop.com.br", claims.Email)
	assert.Equal(t, "Ana", claims.DisplayName)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("secret-a", time.Hour).Issue("s", "e@x.com", "")
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret-b", time.Hour).Parse(token)
	assert.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute)
	token, err := issuer.Issue("s", "e@x.com", "")
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.Error(t, err)
}

func TestEventBusFanOut(t *testing.T) {
	bus := newEventBus()

	ch1, release1 := bus.subscribe()
	ch2, release2 := bus.subscribe()
	defer release2()

	session := &Session{Subject: "s", Email: "e@x.com"}
	bus.publish(SessionEvent{Type: SignedIn, Session: session})

	ev := <-ch1
	assert.Equal(t, SignedIn, ev.Type)
	assert.Equal(t, session, ev.Session)
	ev = <-ch2
	assert.Equal(t, SignedIn, ev.Type)

	// After release, the channel is closed and no longer receives.
	release1()
	bus.publish(SessionEvent{Type: SignedOut, Session: session})
	_, open := <-ch1
	assert.False(t, open)

	ev = <-ch2
	assert.Equal(t, SignedOut, ev.Type)
}

func TestReleaseIsIdempotent(t *testing.T) {
	bus := newEventBus()
	_, release := bus.subscribe()
	release()
	release()
}
