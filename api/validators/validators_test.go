package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type lineInput struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=100"`
}

type orderInput struct {
	Items  []lineInput `json:"items" validate:"required,min=1,dive"`
	Method string      `json:"paymentMethod" validate:"required,oneof=RAZORPAY COD"`
}

func TestDecodeJSONBodyReportsNestedFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"items":[{"quantity":0}],"paymentMethod":"CASH"}`))
	var dest orderInput
	err := DecodeJSONBody(req, &dest)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "is required", details["items[0].quantity"])
	require.Equal(t, "must be one of [RAZORPAY COD]", details["paymentMethod"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"items":[{"quantity":1}],"paymentMethod":"COD","total":1}`))
	var dest orderInput
	err := DecodeJSONBody(req, &dest)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyAcceptsValidInput(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"items":[{"quantity":2}],"paymentMethod":"COD"}`))
	var dest orderInput
	require.NoError(t, DecodeJSONBody(req, &dest))
	require.Equal(t, 2, dest.Items[0].Quantity)
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=abc&big=500", nil)

	page, err := ParseQueryInt(req, "page", 1, 1, 1000)
	require.NoError(t, err)
	require.Equal(t, 3, page)

	missing, err := ParseQueryInt(req, "missing", 7, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 7, missing)

	_, err = ParseQueryInt(req, "limit", 10, 1, 50)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = ParseQueryInt(req, "big", 10, 1, 50)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?unreadOnly=true&bad=maybe", nil)
	value, err := ParseQueryBool(req, "unreadOnly")
	require.NoError(t, err)
	require.True(t, value)

	_, err = ParseQueryBool(req, "bad")
	require.Error(t, err)
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("orderId", id.String())
	routeCtx.URLParams.Add("bad", "nope")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	got, err := ParseUUIDParam(req, "orderId")
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = ParseUUIDParam(req, "bad")
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
