package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"flight-alert-service/internal/models"
)

// PendingRequestsWithDeparturesIn returns the read-only deadline view: every
// pending flight request whose earliest leg departs inside [from, to], with
// the attributes alert messages are built from.
func (d *DB) PendingRequestsWithDeparturesIn(ctx context.Context, from, to time.Time) ([]models.FlightRequest, error) {
	query := `
	SELECT fr.id, fr.request_number, fr.status, fr.vip_codename,
	       MIN(l.departure_time) AS departure_time,
	       first_leg.departure_airport, first_leg.arrival_airport,
	       fr.number_of_passengers, fr.requester_id
	FROM flight_requests fr
	JOIN flight_request_legs l ON l.flight_request_id = fr.id
	JOIN LATERAL (
		SELECT departure_airport, arrival_airport
		FROM flight_request_legs
		WHERE flight_request_id = fr.id
		ORDER BY departure_time ASC
		LIMIT 1
	) first_leg ON true
	WHERE fr.status NOT IN ('completed', 'unable', 'cancelled')
	GROUP BY fr.id, fr.request_number, fr.status, fr.vip_codename,
	         first_leg.departure_airport, first_leg.arrival_airport,
	         fr.number_of_passengers, fr.requester_id
	HAVING MIN(l.departure_time) BETWEEN $1 AND $2
	ORDER BY MIN(l.departure_time) ASC`

	rows, err := d.Pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending requests: %w", err)
	}
	defer rows.Close()

	var list []models.FlightRequest
	for rows.Next() {
		var r models.FlightRequest
		err := rows.Scan(
			&r.ID, &r.RequestNumber, &r.Status, &r.VIPCodename,
			&r.DepartureTime, &r.DepartureAirport, &r.ArrivalAirport,
			&r.Passengers, &r.RequesterID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flight request: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// GetRequest fetches the deadline view for a single request. Returns
// models.ErrNotFound when the request does not exist.
func (d *DB) GetRequest(ctx context.Context, id uuid.UUID) (*models.FlightRequest, error) {
	query := `
	SELECT fr.id, fr.request_number, fr.status, fr.vip_codename,
	       MIN(l.departure_time) AS departure_time,
	       first_leg.departure_airport, first_leg.arrival_airport,
	       fr.number_of_passengers, fr.requester_id
	FROM flight_requests fr
	JOIN flight_request_legs l ON l.flight_request_id = fr.id
	JOIN LATERAL (
		SELECT departure_airport, arrival_airport
		FROM flight_request_legs
		WHERE flight_request_id = fr.id
		ORDER BY departure_time ASC
		LIMIT 1
	) first_leg ON true
	WHERE fr.id = $1
	GROUP BY fr.id, fr.request_number, fr.status, fr.vip_codename,
	         first_leg.departure_airport, first_leg.arrival_airport,
	         fr.number_of_passengers, fr.requester_id`

	var r models.FlightRequest
	err := d.Pool.QueryRow(ctx, query, id).Scan(
		&r.ID, &r.RequestNumber, &r.Status, &r.VIPCodename,
		&r.DepartureTime, &r.DepartureAirport, &r.ArrivalAirport,
		&r.Passengers, &r.RequesterID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get flight request %s: %w", id, err)
	}
	return &r, nil
}
