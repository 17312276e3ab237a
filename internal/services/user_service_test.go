package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/finsync/engine/internal/models"
	appErr "github.com/finsync/engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u := s.seedUser(t, "me@example.com")
	s.seedUser(t, "taken@example.com")
	svc := NewUserService(s.users)

	name, company := "New Name", "Acme"
	got, err := svc.UpdateProfile(ctx, u.ID, ProfileUpdate{Name: &name, Company: &company})
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Name)
	assert.Equal(t, "Acme", models.Deref(got.Company))
	assert.Empty(t, got.Password)

	same := "me@example.com"
	_, err = svc.UpdateProfile(ctx, u.ID, ProfileUpdate{Email: &same})
	assert.NoError(t, err)

	taken := "taken@example.com"
	_, err = svc.UpdateProfile(ctx, u.ID, ProfileUpdate{Email: &taken})
	ae, ok := appErr.As(err)
	require.True(t, ok)
	assert.Equal(t, appErr.CodeConflict, ae.Code)
	assert.Equal(t, "Email already exists", ae.Message)

	blank := " "
	_, err = svc.UpdateProfile(ctx, u.ID, ProfileUpdate{Name: &blank})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))

	_, err = svc.UpdateProfile(ctx, "nope", ProfileUpdate{Name: &name})
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSetAvatar(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u := s.seedUser(t, "pic@example.com")
	svc := NewUserService(s.users)

	uri, err := svc.SetAvatar(ctx, u.ID, pngBytes(t, 400, 100))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))

	got, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, uri, models.Deref(got.Avatar))

	_, err = svc.SetAvatar(ctx, u.ID, []byte("not an image"))
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))

	_, err = svc.SetAvatar(ctx, "missing", pngBytes(t, 10, 10))
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestFitInside(t *testing.T) {
	w, h := fitInside(400, 100, 200)
	assert.Equal(t, [2]int{200, 50}, [2]int{w, h})
	w, h = fitInside(50, 100, 200)
	assert.Equal(t, [2]int{100, 200}, [2]int{w, h})
	w, h = fitInside(1000, 1, 200)
	assert.Equal(t, [2]int{200, 1}, [2]int{w, h})
}
