// Command seed provisions a demo tenant through the public API: one
// organization in America/Sao_Paulo, an admin, a member allowed to
// book, a category, a resource open on weekdays and one booking next
// Monday. Safe to rerun; existing entities are reused.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	tenantDomain = "aurora"
	adminEmail   = "admin@aurora.example"
	memberEmail  = "bruno@aurora.example"
)

type seeder struct {
	client *resty.Client
}

func main() {
	gatewayURL := flag.String("gateway", "http://localhost:8000", "base URL of the gateway")
	password := flag.String("password", "aurora-demo-123", "password for both demo users")
	flag.Parse()

	s := &seeder{client: resty.New().
		SetBaseURL(*gatewayURL).
		SetTimeout(15 * time.Second).
		SetHeader("Accept", "application/json")}

	if err := s.run(*password); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func (s *seeder) run(password string) error {
	tenantID, err := s.ensureTenant()
	if err != nil {
		return err
	}
	if err := s.ensureUser(tenantID, "Ana Lima", adminEmail, "admin", password, nil); err != nil {
		return err
	}
	canBook := map[string]any{"can_book": true}
	if err := s.ensureUser(tenantID, "Bruno Costa", memberEmail, "user", password, canBook); err != nil {
		return err
	}

	adminToken, err := s.login(adminEmail, password)
	if err != nil {
		return err
	}
	categoryID, err := s.ensureCategory(adminToken, "Salas de Reuniao")
	if err != nil {
		return err
	}
	resourceID, err := s.ensureResource(adminToken, categoryID, "Sala Ipanema")
	if err != nil {
		return err
	}

	memberToken, err := s.login(memberEmail, password)
	if err != nil {
		return err
	}
	if err := s.bookNextMonday(memberToken, resourceID); err != nil {
		return err
	}

	fmt.Println("demo data ready: tenant", tenantDomain, "resource", resourceID)
	return nil
}

func (s *seeder) ensureTenant() (uuid.UUID, error) {
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	resp, err := s.client.R().
		SetBody(map[string]any{
			"name":   "Clinica Aurora",
			"domain": tenantDomain,
			"plan":   "pro",
			"settings": map[string]any{
				"business_type":        "clinic",
				"timezone":             "America/Sao_Paulo",
				"working_hours_start":  "08:00",
				"working_hours_end":    "18:00",
				"booking_interval":     30,
				"advance_booking_days": 30,
				"cancellation_hours":   24,
			},
		}).
		SetResult(&created).
		Post("/tenants")
	if err != nil {
		return uuid.Nil, fmt.Errorf("create tenant: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusCreated:
		fmt.Println("tenant created:", created.ID)
		return created.ID, nil
	case http.StatusConflict:
		resp, err = s.client.R().SetResult(&created).Get("/tenants/domain/" + tenantDomain)
		if err != nil || resp.StatusCode() != http.StatusOK {
			return uuid.Nil, fmt.Errorf("resolve existing tenant: %v (%s)", err, resp.Status())
		}
		fmt.Println("tenant already present:", created.ID)
		return created.ID, nil
	default:
		return uuid.Nil, fmt.Errorf("create tenant: %s: %s", resp.Status(), resp.String())
	}
}

func (s *seeder) ensureUser(tenantID uuid.UUID, name, email, userType, password string, permissions map[string]any) error {
	body := map[string]any{
		"tenant_id": tenantID,
		"name":      name,
		"email":     email,
		"user_type": userType,
		"password":  password,
	}
	if permissions != nil {
		body["permissions"] = permissions
	}
	resp, err := s.client.R().SetBody(body).Post("/users")
	if err != nil {
		return fmt.Errorf("create user %s: %w", email, err)
	}
	switch resp.StatusCode() {
	case http.StatusCreated:
		fmt.Println("user created:", email)
		return nil
	case http.StatusConflict:
		fmt.Println("user already present:", email)
		return nil
	default:
		return fmt.Errorf("create user %s: %s: %s", email, resp.Status(), resp.String())
	}
}

func (s *seeder) login(email, password string) (string, error) {
	var result struct {
		AccessToken string `json:"access_token"`
	}
	resp, err := s.client.R().
		SetFormData(map[string]string{"email": email, "password": password}).
		SetResult(&result).
		Post("/users/login")
	if err != nil {
		return "", fmt.Errorf("login %s: %w", email, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("login %s: %s: %s", email, resp.Status(), resp.String())
	}
	return result.AccessToken, nil
}

func (s *seeder) ensureCategory(token, name string) (uuid.UUID, error) {
	var existing []struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
	}
	resp, err := s.client.R().SetAuthToken(token).SetResult(&existing).Get("/categories")
	if err != nil {
		return uuid.Nil, fmt.Errorf("list categories: %w", err)
	}
	if resp.StatusCode() == http.StatusOK {
		for _, c := range existing {
			if c.Name == name {
				fmt.Println("category already present:", c.ID)
				return c.ID, nil
			}
		}
	}

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	resp, err = s.client.R().
		SetAuthToken(token).
		SetBody(map[string]any{"name": name, "type": "fisico"}).
		SetResult(&created).
		Post("/categories")
	if err != nil {
		return uuid.Nil, fmt.Errorf("create category: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return uuid.Nil, fmt.Errorf("create category: %s: %s", resp.Status(), resp.String())
	}
	fmt.Println("category created:", created.ID)
	return created.ID, nil
}

func (s *seeder) ensureResource(token string, categoryID uuid.UUID, name string) (uuid.UUID, error) {
	var existing []struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
	}
	resp, err := s.client.R().SetAuthToken(token).SetResult(&existing).Get("/resources")
	if err != nil {
		return uuid.Nil, fmt.Errorf("list resources: %w", err)
	}
	if resp.StatusCode() == http.StatusOK {
		for _, r := range existing {
			if r.Name == name {
				fmt.Println("resource already present:", r.ID)
				return r.ID, nil
			}
		}
	}

	weekdays := []string{"monday", "tuesday", "wednesday", "thursday", "friday"}
	schedule := map[string][]string{}
	for _, day := range weekdays {
		schedule[day] = []string{"08:00-18:00"}
	}

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	resp, err = s.client.R().
		SetAuthToken(token).
		SetBody(map[string]any{
			"category_id":           categoryID,
			"name":                  name,
			"capacity":              8,
			"location":              "2o andar",
			"availability_schedule": schedule,
		}).
		SetResult(&created).
		Post("/resources")
	if err != nil {
		return uuid.Nil, fmt.Errorf("create resource: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return uuid.Nil, fmt.Errorf("create resource: %s: %s", resp.Status(), resp.String())
	}
	fmt.Println("resource created:", created.ID)
	return created.ID, nil
}

// bookNextMonday places a one-hour booking next Monday morning, local
// time. A 409 means a previous run already holds the slot.
func (s *seeder) bookNextMonday(token string, resourceID uuid.UUID) error {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return err
	}
	now := time.Now().In(loc)
	ahead := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	monday := now.AddDate(0, 0, ahead).Format("2006-01-02")

	resp, err := s.client.R().
		SetAuthToken(token).
		SetBody(map[string]any{
			"resource_id": resourceID,
			"start_time":  monday + "T10:00",
			"end_time":    monday + "T11:00",
			"notes":       "reuniao de planejamento",
		}).
		Post("/bookings")
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusCreated:
		fmt.Println("booking created for", monday)
		return nil
	case http.StatusConflict:
		fmt.Println("booking already present for", monday)
		return nil
	default:
		return fmt.Errorf("create booking: %s: %s", resp.Status(), resp.String())
	}
}
