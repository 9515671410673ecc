package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "estateclaims/pkg/domain"
)

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()
	_, ok := Caller(ctx)
	assert.False(t, ok)
	assert.Equal(t, Client{}, ClientInfo(ctx))
	assert.Empty(t, RequestID(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
	assert.Equal(t, time.UTC, Now(ctx).Location())
}

func TestValuesRoundTrip(t *testing.T) {
	pinned := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	caller := id.Caller{UserID: id.NewUserID(), Roles: []id.Role{id.RoleReviewer}}
	client := Client{IP: "198.51.100.9", UserAgent: "curl/8.0", Device: "curl 8.0"}

	ctx := WithTime(context.Background(), pinned)
	ctx = WithCaller(ctx, caller)
	ctx = WithClient(ctx, client)
	ctx = WithRequestID(ctx, "req-42")

	got, ok := Caller(ctx)
	assert.True(t, ok)
	assert.Equal(t, caller.UserID, got.UserID)
	assert.Equal(t, client, ClientInfo(ctx))
	assert.Equal(t, "req-42", RequestID(ctx))
	assert.Equal(t, pinned, Now(ctx))
}
