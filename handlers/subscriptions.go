package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"xandpulse/models"
	"xandpulse/services"
)

type SubscriptionHandlers struct {
	subscriptions *services.SubscriptionService
}

func NewSubscriptionHandlers(subscriptions *services.SubscriptionService) *SubscriptionHandlers {
	return &SubscriptionHandlers{subscriptions: subscriptions}
}

func subscriptionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidSubscription):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrSubscriptionNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

// CreateSubscription - POST /api/subscriptions
func (sh *SubscriptionHandlers) CreateSubscription(c echo.Context) error {
	var sub models.Subscription
	if err := c.Bind(&sub); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	if err := sh.subscriptions.Create(c.Request().Context(), &sub); err != nil {
		return subscriptionError(c, err)
	}
	return c.JSON(http.StatusCreated, sub)
}

// ListSubscriptions - GET /api/subscriptions
func (sh *SubscriptionHandlers) ListSubscriptions(c echo.Context) error {
	subs, err := sh.subscriptions.List(c.Request().Context())
	if err != nil {
		return subscriptionError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":         len(subs),
		"subscriptions": subs,
	})
}

// GetSubscription - GET /api/subscriptions/:id
func (sh *SubscriptionHandlers) GetSubscription(c echo.Context) error {
	sub, err := sh.subscriptions.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return subscriptionError(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

// UpdateSubscription - PUT /api/subscriptions/:id
func (sh *SubscriptionHandlers) UpdateSubscription(c echo.Context) error {
	var sub models.Subscription
	if err := c.Bind(&sub); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	if err := sh.subscriptions.Update(c.Request().Context(), c.Param("id"), &sub); err != nil {
		return subscriptionError(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

// DeleteSubscription - DELETE /api/subscriptions/:id
func (sh *SubscriptionHandlers) DeleteSubscription(c echo.Context) error {
	if err := sh.subscriptions.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return subscriptionError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "subscription deleted"})
}
