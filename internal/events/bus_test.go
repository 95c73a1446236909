package events

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestBusFanOutPreservesOrder(t *testing.T) {
	bus := NewBus(testLogger())
	sub := bus.Subscribe(8)
	ctx := context.Background()
	addr := domain.NewPolkadotAddress("15MUBwP6")

	published := []domain.Event{
		domain.IdentityFullyVerified{Address: addr, Challenge: "1127233905"},
		domain.RemarkFound{Address: addr, Remark: "1127233905"},
		domain.JudgementGiven{Address: addr},
	}
	for _, ev := range published {
		require.NoError(t, bus.Publish(ctx, ev))
	}
	bus.Close()

	var got []domain.Event
	for ev := range sub {
		got = append(got, ev)
	}
	require.Equal(t, published, got)
}

func TestBusPublishAfterClose(t *testing.T) {
	bus := NewBus(testLogger())
	bus.Close()
	err := bus.Publish(context.Background(), domain.JudgementGiven{Address: domain.NewKusamaAddress("x")})
	require.NoError(t, err)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	addr := domain.NewPolkadotAddress("15MUBwP6")
	env, err := Wrap(domain.IdentityFullyVerified{Address: addr, Challenge: "1127233905"})
	require.NoError(t, err)
	require.NotEmpty(t, env.ID)
	require.Equal(t, domain.EventIdentityFullyVerified, env.Kind)
	require.Equal(t, addr, env.Address)

	ev, err := env.Event()
	require.NoError(t, err)
	verified, ok := ev.(domain.IdentityFullyVerified)
	require.True(t, ok)
	require.Equal(t, domain.OnChainChallenge("1127233905"), verified.Challenge)
}

func TestEnvelopeUnknownKind(t *testing.T) {
	env := Envelope{Kind: "private_message"}
	_, err := env.Event()
	require.Error(t, err)
}
