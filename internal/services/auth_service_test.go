package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/finsync/engine/internal/models"
	appErr "github.com/finsync/engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterThenLogin(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(newStore(t))

	reg, err := auth.Register(ctx, RegisterInput{Email: "Mixed.Case@Example.com", Password: "p", Name: "A", Phone: "98765"})
	require.NoError(t, err)
	assert.Equal(t, "Mixed.Case@Example.com", reg.User.Email)
	assert.Empty(t, reg.User.Password)
	assert.True(t, reg.User.IsActive)
	assert.Equal(t, "98765", models.Deref(reg.User.Phone))
	assert.NotEmpty(t, reg.Session.ID)
	assert.NotEmpty(t, reg.Session.Token)

	login, err := auth.Login(ctx, "Mixed.Case@Example.com", "p", "client-sid")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)
	assert.Equal(t, "client-sid", login.Session.ID)

	b, err := json.Marshal(login)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "password")
	assert.NotContains(t, string(b), "$2a$")
}

func TestLoginFailuresLookAlike(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	s.seedUser(t, "a@b.com")
	auth := newAuth(s)

	_, wrongPw := auth.Login(ctx, "a@b.com", "wrong", "")
	_, noUser := auth.Login(ctx, "nobody@b.com", "pw", "")
	require.Error(t, wrongPw)
	require.Error(t, noUser)
	assert.Equal(t, wrongPw.Error(), noUser.Error())
	assert.True(t, appErr.IsCode(wrongPw, appErr.CodeUnauthorized))
	assert.True(t, appErr.IsCode(noUser, appErr.CodeUnauthorized))

	_, err := auth.Login(ctx, "", "pw", "")
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
}

func TestRegisterValidation(t *testing.T) {
	auth := newAuth(newStore(t))
	cases := []struct {
		name string
		in   RegisterInput
		msg  string
	}{
		{"missing email", RegisterInput{Password: "p", Name: "A"}, "Email is required"},
		{"bad email", RegisterInput{Email: "a@b", Password: "p", Name: "A"}, `Please enter a valid email address. You entered: "a@b"`},
		{"missing name", RegisterInput{Email: "a@b.com", Password: "p", Name: "  "}, "Name is required"},
		{"missing password", RegisterInput{Email: "a@b.com", Name: "A"}, "Password is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := auth.Register(context.Background(), tc.in)
			ae, ok := appErr.As(err)
			require.True(t, ok)
			assert.Equal(t, appErr.CodeInvalid, ae.Code)
			assert.Equal(t, tc.msg, ae.Message)
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	s.seedUser(t, "dup@example.com")

	_, err := newAuth(s).Register(ctx, RegisterInput{Email: "dup@example.com", Password: "x", Name: "B"})
	ae, ok := appErr.As(err)
	require.True(t, ok)
	assert.Equal(t, appErr.CodeConflict, ae.Code)
	assert.Equal(t, "User already exists", ae.Message)
}

func TestConcurrentRegistrationCreatesOneUser(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	auth := newAuth(s)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = auth.Register(ctx, RegisterInput{Email: "race@example.com", Password: "p", Name: "R"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, appErr.IsCode(err, appErr.CodeConflict), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)

	var count int64
	require.NoError(t, s.db.Model(&models.User{}).Where("email = ?", "race@example.com").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRegisterOnLegacySchema(t *testing.T) {
	ctx := context.Background()
	s := newStoreAt(t, 1)
	require.True(t, s.users.Legacy())
	auth := newAuth(s)

	reg, err := auth.Register(ctx, RegisterInput{Email: "old@example.com", Password: "p", Name: "Old", Phone: "123"})
	require.NoError(t, err)
	assert.Nil(t, reg.User.Phone)

	login, err := auth.Login(ctx, "old@example.com", "p", "")
	require.NoError(t, err)
	assert.Nil(t, login.User.Phone)
}

func TestValidateSession(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	auth := newAuth(s)
	reg, err := auth.Register(ctx, RegisterInput{Email: "v@example.com", Password: "p", Name: "V"})
	require.NoError(t, err)
	other := s.seedUser(t, "w@example.com")

	u, err := auth.ValidateSession(ctx, reg.User.ID, reg.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, u.ID)
	assert.Empty(t, u.Password)

	_, err = auth.ValidateSession(ctx, reg.User.ID, "")
	assert.NoError(t, err)

	_, err = auth.ValidateSession(ctx, other.ID, reg.Session.Token)
	assert.True(t, appErr.IsCode(err, appErr.CodeUnauthorized))

	_, err = auth.ValidateSession(ctx, "missing", "")
	assert.True(t, appErr.IsCode(err, appErr.CodeUnauthorized))

	_, err = auth.ValidateSession(ctx, "", "")
	assert.True(t, appErr.IsCode(err, appErr.CodeUnauthorized))
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer([]byte("k1"), time.Minute)
	sess, err := issuer.Issue("user-1", "")
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	claims, err := issuer.Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, sess.ID, claims.SessionID)

	_, err = NewTokenIssuer([]byte("k2"), time.Minute).Verify(sess.Token)
	assert.Error(t, err)

	later := time.Now().Add(2 * time.Minute)
	issuer.now = func() time.Time { return later }
	_, err = issuer.Verify(sess.Token)
	assert.Error(t, err)

	_, err = issuer.Verify("not-a-token")
	assert.Error(t, err)
}
