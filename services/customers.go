package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"backoffice/models"
	"backoffice/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CustomerService struct {
	store    *repository.Store
	adminUID string
	now      func() time.Time
}

func normalizeCustomer(c *models.Customer) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Address = strings.TrimSpace(c.Address)
	c.City = strings.TrimSpace(c.City)
	c.Contact = strings.TrimSpace(c.Contact)
	c.Email = strings.TrimSpace(c.Email)
	if c.Name == "" {
		return invalid("customer name is required")
	}
	return nil
}

func (s *CustomerService) CreateCustomer(ctx context.Context, actor models.Actor, c models.Customer) (*models.Customer, error) {
	if err := normalizeCustomer(&c); err != nil {
		return nil, err
	}
	now := s.now()
	c.ID = primitive.NilObjectID
	c.OwnerID = actor.OwnerID
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := s.store.Customers.Create(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CustomerService) GetCustomer(ctx context.Context, ownerID, id string) (*models.Customer, error) {
	oid, err := parseID(id, "customer")
	if err != nil {
		return nil, err
	}
	c, err := s.store.Customers.Get(ctx, ownerID, oid)
	if err != nil {
		return nil, notFound(err, "customer", id)
	}
	return c, nil
}

func (s *CustomerService) UpdateCustomer(ctx context.Context, actor models.Actor, id string, c models.Customer) (*models.Customer, error) {
	oid, err := parseID(id, "customer")
	if err != nil {
		return nil, err
	}
	if err := normalizeCustomer(&c); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now()
	out, err := s.store.Customers.Update(ctx, actor.OwnerID, oid, c)
	if err != nil {
		return nil, notFound(err, "customer", id)
	}
	return out, nil
}

func (s *CustomerService) DeleteCustomer(ctx context.Context, actor models.Actor, id string) error {
	oid, err := parseID(id, "customer")
	if err != nil {
		return err
	}
	return notFound(s.store.Customers.Delete(ctx, actor.OwnerID, oid), "customer", id)
}

// ListCustomers returns the owner's customers followed by the admin's shared ones. Names are
// compared trimmed and case-insensitively and the owner's own record wins a clash.
func (s *CustomerService) ListCustomers(ctx context.Context, ownerID string) ([]models.Customer, error) {
	adminID, err := s.sharedOwner(ctx)
	if err != nil {
		return nil, err
	}
	owners := []string{ownerID}
	if adminID != "" && adminID != ownerID {
		owners = append(owners, adminID)
	}
	all, err := s.store.Customers.List(ctx, owners)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	out := []models.Customer{}
	for _, owner := range owners {
		for _, c := range all {
			if c.OwnerID != owner {
				continue
			}
			key := strings.ToLower(strings.TrimSpace(c.Name))
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *CustomerService) sharedOwner(ctx context.Context) (string, error) {
	if s.adminUID != "" {
		return s.adminUID, nil
	}
	admin, err := s.store.Users.FirstByRole(ctx, models.RoleAdmin)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return admin.ID.Hex(), nil
}
