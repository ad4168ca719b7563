package auth_test

import (
	"testing"
	"time"

	"github.com/medflow/medflow-warehouse/pkg/actor"
	"github.com/medflow/medflow-warehouse/pkg/auth"
	"github.com/medflow/medflow-warehouse/pkg/config"
	"github.com/medflow/medflow-warehouse/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := auth.NewVerifier(&config.JWTConfig{Secret: "test-secret", Issuer: "medflow"})
	pharmacist := &actor.Actor{
		ID:          "8d1f3f4e-6f2a-4c8e-9a57-6c2f1b0e4a11",
		Name:        "Ana Pharmacist",
		Email:       "ana@hospital.test",
		Permissions: []string{"warehouse.issuance.*"},
	}

	token, err := v.Issue(pharmacist, time.Minute)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)

	a := claims.Actor()
	assert.Equal(t, pharmacist.ID, a.ID)
	assert.True(t, a.Can("warehouse.issuance.unapprove"))
	assert.False(t, a.Can("warehouse.stock.adjust"))
}

func TestVerifier_Rejects(t *testing.T) {
	v := auth.NewVerifier(&config.JWTConfig{Secret: "test-secret", Issuer: "medflow"})
	other := auth.NewVerifier(&config.JWTConfig{Secret: "other-secret", Issuer: "medflow"})
	a := &actor.Actor{ID: "8d1f3f4e-6f2a-4c8e-9a57-6c2f1b0e4a11"}

	t.Run("wrong secret", func(t *testing.T) {
		token, err := other.Issue(a, time.Minute)
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.ErrorIs(t, err, errors.ErrTokenInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := v.Issue(a, -time.Minute)
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.ErrorIs(t, err, errors.ErrTokenExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify("not-a-token")
		assert.ErrorIs(t, err, errors.ErrTokenInvalid)
	})
}
