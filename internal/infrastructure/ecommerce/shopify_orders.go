package ecommerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
)

var _ integration.OrderSource = (*ShopifyAdapter)(nil)

// FetchOrders reads every order page, following Link pagination. Orders
// carrying opts.ExcludeTag are dropped after the read since the REST order
// listing has no tag filter.
func (a *ShopifyAdapter) FetchOrders(ctx context.Context, opts integration.OrderFetchOptions) ([]integration.Order, error) {
	query := url.Values{}
	query.Set("status", "any")
	query.Set("limit", strconv.Itoa(shopifyPageLimit))
	if opts.CreatedSince != nil {
		query.Set("created_at_min", opts.CreatedSince.UTC().Format(time.RFC3339))
	}

	var (
		orders   []integration.Order
		excluded int
	)
	next := "orders.json"
	for next != "" {
		var page ShopifyOrdersResponse
		resp, err := a.client.getJSON(ctx, next, query, &page)
		if err != nil {
			return nil, err
		}
		for _, o := range page.Orders {
			order := shopifyToOrder(o)
			if opts.ExcludeTag != "" && order.HasTag(opts.ExcludeTag) {
				excluded++
				continue
			}
			orders = append(orders, order)
		}

		next = nextPageLink(resp.Header)
		query = nil
	}

	a.logger.Debug("Fetched storefront orders",
		zap.Int("count", len(orders)),
		zap.Int("excluded", excluded),
	)
	return orders, nil
}

// TagOrder appends tag to the order's tags. The current tags are read first
// so that concurrent edits made in the admin are kept.
func (a *ShopifyAdapter) TagOrder(ctx context.Context, orderID, tag string) error {
	id, err := parseID(orderID)
	if err != nil {
		return fmt.Errorf("%w: order id %q", integration.ErrOrderSyncFailed, orderID)
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil
	}

	path := fmt.Sprintf("orders/%d.json", id)
	var current ShopifyOrderEnvelope
	if _, err := a.client.getJSON(ctx, path, url.Values{"fields": {"id,tags"}}, &current); err != nil {
		return err
	}

	tags := splitTags(current.Order.Tags)
	if (integration.Order{Tags: tags}).HasTag(tag) {
		return nil
	}
	tags = append(tags, tag)

	body := ShopifyOrderEnvelope{Order: ShopifyOrder{ID: id, Tags: strings.Join(tags, ", ")}}
	return a.client.sendJSON(ctx, http.MethodPut, path, body, nil)
}

// shopifyToOrder converts an order resource. The customer falls back to the
// order's contact fields and the shipping name when no customer is attached.
func shopifyToOrder(o ShopifyOrder) integration.Order {
	out := integration.Order{
		PlatformID: formatID(o.ID),
		Name:       o.Name,
		Tags:       splitTags(o.Tags),
	}
	if o.CreatedAt != nil {
		out.CreatedAt = *o.CreatedAt
	}

	customer := integration.OrderCustomer{Email: o.Email, Phone: o.Phone}
	if c := o.Customer; c != nil {
		customer.FirstName = c.FirstName
		customer.LastName = c.LastName
		if customer.Email == "" {
			customer.Email = c.Email
		}
		if customer.Phone == "" {
			customer.Phone = c.Phone
		}
	}
	if addr := o.ShippingAddress; addr != nil {
		if customer.FirstName == "" && customer.LastName == "" {
			customer.FirstName = addr.FirstName
			customer.LastName = addr.LastName
		}
		if customer.Phone == "" {
			customer.Phone = addr.Phone
		}
		out.ShippingAddress = &integration.OrderAddress{
			Address1: addr.Address1,
			Address2: addr.Address2,
			City:     addr.City,
			Zip:      addr.Zip,
			Country:  addr.Country,
		}
	}
	out.Customer = &customer

	for _, li := range o.LineItems {
		line := integration.OrderLine{
			Title:    li.Title,
			SKU:      li.SKU,
			Quantity: li.Quantity,
		}
		if price, err := decimal.NewFromString(li.Price); err == nil {
			line.Price = price
		}
		out.LineItems = append(out.LineItems, line)
	}
	return out
}

// splitTags parses a comma separated tag list
func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
