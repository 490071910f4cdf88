package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
)

var _ integration.OrderTarget = (*MoySkladAdapter)(nil)

// GetOrCreateCustomer looks the counterparty up by email, then by name, and
// creates it when neither matches
func (a *MoySkladAdapter) GetOrCreateCustomer(ctx context.Context, customer integration.OrderCustomer) (string, error) {
	name := customer.DisplayName()
	email := strings.TrimSpace(customer.Email)

	if email != "" {
		if id, err := a.findCounterparty(ctx, "email="+email); err != nil || id != "" {
			return id, err
		}
	}
	if id, err := a.findCounterparty(ctx, "name="+name); err != nil || id != "" {
		return id, err
	}

	body := MoySkladCounterparty{
		Name:        name,
		Email:       email,
		Phone:       strings.TrimSpace(customer.Phone),
		CompanyType: "individual",
		Tags:        customer.Tags,
	}
	var out MoySkladCounterparty
	if err := a.client.sendJSON(ctx, http.MethodPost, "entity/counterparty", body, &out); err != nil {
		return "", err
	}
	a.logger.Info("Created ERP counterparty",
		zap.String("counterparty_id", out.ID),
		zap.String("name", name),
	)
	return out.ID, nil
}

// CreateCustomerOrder creates the customer order unless one with the same
// external code already exists
func (a *MoySkladAdapter) CreateCustomerOrder(ctx context.Context, order integration.CustomerOrder) (string, error) {
	if order.ExternalCode == "" || order.CustomerID == "" {
		return "", fmt.Errorf("%w: order %q needs an external code and a customer", integration.ErrOrderSyncFailed, order.Name)
	}

	var existing MoySkladCustomerOrderList
	query := url.Values{"filter": {"externalCode=" + order.ExternalCode}, "limit": {"1"}}
	if _, err := a.client.getJSON(ctx, "entity/customerorder", query, &existing); err != nil {
		return "", err
	}
	if len(existing.Rows) > 0 {
		a.logger.Debug("ERP customer order already exists",
			zap.String("order_id", existing.Rows[0].ID),
			zap.String("external_code", order.ExternalCode),
		)
		return existing.Rows[0].ID, nil
	}

	organization, store, err := a.resolveOrderRefs(ctx)
	if err != nil {
		return "", err
	}

	body := MoySkladCustomerOrder{
		Name:            order.Name,
		ExternalCode:    order.ExternalCode,
		Description:     order.Description,
		ShipmentAddress: order.ShipmentAddress,
		Organization:    organization,
		Agent:           a.entityRef("counterparty", order.CustomerID),
		Store:           store,
	}
	if !order.Moment.IsZero() {
		body.Moment = &MoySkladTime{Time: order.Moment}
	}
	for _, p := range order.Positions {
		body.Positions = append(body.Positions, MoySkladOrderPosition{
			Quantity:   float64(p.Quantity),
			Price:      json.Number(p.Price.Round(0).String()),
			Assortment: *a.entityRef("product", p.ProductID),
		})
	}

	var out MoySkladCustomerOrder
	if err := a.client.sendJSON(ctx, http.MethodPost, "entity/customerorder", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// findCounterparty returns the id of the first counterparty matching filter
func (a *MoySkladAdapter) findCounterparty(ctx context.Context, filter string) (string, error) {
	var page MoySkladCounterpartyList
	query := url.Values{"filter": {filter}, "limit": {"1"}}
	if _, err := a.client.getJSON(ctx, "entity/counterparty", query, &page); err != nil {
		return "", err
	}
	if len(page.Rows) == 0 {
		return "", nil
	}
	return page.Rows[0].ID, nil
}

// resolveOrderRefs loads and caches the organization and store orders are filed under
func (a *MoySkladAdapter) resolveOrderRefs(ctx context.Context) (*MoySkladMetaRef, *MoySkladMetaRef, error) {
	a.orderRefsMu.Lock()
	defer a.orderRefsMu.Unlock()
	if a.organization != nil && a.store != nil {
		return a.organization, a.store, nil
	}

	organization, err := a.pickEntity(ctx, "organization", a.config.OrganizationName)
	if err != nil {
		return nil, nil, err
	}
	store, err := a.pickEntity(ctx, "store", a.config.StoreName)
	if err != nil {
		return nil, nil, err
	}

	a.organization = &MoySkladMetaRef{Meta: organization.Meta}
	a.store = &MoySkladMetaRef{Meta: store.Meta}
	a.logger.Info("Using ERP order defaults",
		zap.String("organization", organization.Name),
		zap.String("store", store.Name),
	)
	return a.organization, a.store, nil
}

// pickEntity returns the entity called name, or the first one when name is empty
func (a *MoySkladAdapter) pickEntity(ctx context.Context, kind, name string) (MoySkladEntity, error) {
	var page MoySkladEntityList
	if _, err := a.client.getJSON(ctx, "entity/"+kind, nil, &page); err != nil {
		return MoySkladEntity{}, err
	}
	for _, e := range page.Rows {
		if name == "" || strings.EqualFold(e.Name, name) {
			return e, nil
		}
	}
	if name == "" {
		return MoySkladEntity{}, fmt.Errorf("%w: moysklad: no %s defined", integration.ErrPlatformNotConfigured, kind)
	}
	return MoySkladEntity{}, fmt.Errorf("%w: moysklad: %s %q not found", integration.ErrPlatformNotConfigured, kind, name)
}

// entityRef builds a meta reference to an entity by id
func (a *MoySkladAdapter) entityRef(kind, id string) *MoySkladMetaRef {
	return &MoySkladMetaRef{Meta: MoySkladMeta{
		Href:      a.config.APIBaseURL + "/entity/" + kind + "/" + url.PathEscape(id),
		Type:      kind,
		MediaType: "application/json",
	}}
}
