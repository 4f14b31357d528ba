package rest

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"townsq/internal/domain/entity"
)

type bookAppointmentRequest struct {
	BusinessID string    `json:"business_id"`
	ServiceID  string    `json:"service_id"`
	StartsAt   time.Time `json:"starts_at"`
}

type addFavoriteRequest struct {
	BusinessID string `json:"business_id"`
}

func (c *Client) SearchBusinesses(ctx context.Context, query, category string) ([]entity.Business, error) {
	params := url.Values{}
	if query != "" {
		params.Set("search", query)
	}
	if category != "" {
		params.Set("category", category)
	}

	path := "/businesses"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var businesses []entity.Business
	if err := c.do(ctx, http.MethodGet, path, nil, &businesses); err != nil {
		return nil, err
	}
	return businesses, nil
}

func (c *Client) GetBusiness(ctx context.Context, slug string) (*entity.Business, error) {
	var business entity.Business
	if err := c.do(ctx, http.MethodGet, "/businesses/"+url.PathEscape(slug), nil, &business); err != nil {
		return nil, err
	}
	return &business, nil
}

func (c *Client) ListServices(ctx context.Context, businessID string) ([]entity.Service, error) {
	var services []entity.Service
	if err := c.do(ctx, http.MethodGet, "/services?business_id="+url.QueryEscape(businessID), nil, &services); err != nil {
		return nil, err
	}
	return services, nil
}

func (c *Client) ListFavorites(ctx context.Context) ([]entity.Business, error) {
	var businesses []entity.Business
	if err := c.do(ctx, http.MethodGet, "/favorites", nil, &businesses); err != nil {
		return nil, err
	}
	return businesses, nil
}

func (c *Client) AddFavorite(ctx context.Context, businessID string) error {
	return c.do(ctx, http.MethodPost, "/favorites", addFavoriteRequest{BusinessID: businessID}, nil)
}

func (c *Client) RemoveFavorite(ctx context.Context, businessID string) error {
	return c.do(ctx, http.MethodDelete, "/favorites/"+url.PathEscape(businessID), nil, nil)
}

func (c *Client) BookAppointment(ctx context.Context, businessID, serviceID string, startsAt time.Time) (*entity.Appointment, error) {
	var appointment entity.Appointment
	err := c.do(ctx, http.MethodPost, "/appointments", bookAppointmentRequest{
		BusinessID: businessID,
		ServiceID:  serviceID,
		StartsAt:   startsAt,
	}, &appointment)
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}

func (c *Client) ListAppointments(ctx context.Context) ([]entity.Appointment, error) {
	var appointments []entity.Appointment
	if err := c.do(ctx, http.MethodGet, "/appointments", nil, &appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}
