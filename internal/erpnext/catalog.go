package erpnext

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/snd-est/snd-rental/internal/shared"
)

const (
	itemPath    = "/api/resource/Item"
	accountPath = "/api/resource/Account"

	itemGroup = "Rental Equipment"

	// Convention-based fallbacks, used when the account lookup fails.
	defaultIncomeAccount     = "Sales - SND"
	defaultReceivableAccount = "Accounts Receivable - SND"
	defaultVATAccount        = "VAT - SND"

	catalogCacheTTL = time.Hour
)

type itemDoc struct {
	ItemCode    string `json:"item_code"`
	ItemName    string `json:"item_name"`
	ItemGroup   string `json:"item_group"`
	StockUOM    string `json:"stock_uom"`
	IsStockItem int    `json:"is_stock_item"`
}

type itemEnvelope struct {
	Data itemDoc `json:"data"`
}

type itemListEnvelope struct {
	Data []itemDoc `json:"data"`
}

type accountDoc struct {
	Name        string `json:"name"`
	AccountType string `json:"account_type"`
}

type accountListEnvelope struct {
	Data []accountDoc `json:"data"`
}

// NormalizeItemCode derives the catalog key for a piece of equipment:
// uppercased trimmed display name, optionally suffixed with the license
// plate for disambiguation.
func NormalizeItemCode(equipmentName, licensePlate string) string {
	code := strings.ToUpper(strings.TrimSpace(equipmentName))
	if plate := strings.ToUpper(strings.TrimSpace(licensePlate)); plate != "" {
		code += "-" + plate
	}
	return code
}

// ItemCode resolves or provisions the catalog entry for a named piece
// of equipment: exact match first, then a fuzzy name search, then
// auto-creation. Results are cached; concurrent lookups for the same
// code collapse into one API call.
func (c *Client) ItemCode(ctx context.Context, equipmentName, licensePlate string) (string, error) {
	code := NormalizeItemCode(equipmentName, licensePlate)
	if code == "" {
		return "", fmt.Errorf("%w: equipment name required for item code", shared.ErrValidation)
	}

	cacheKey := "erpnext:item:" + code
	if cached := c.cacheGet(ctx, cacheKey); cached != "" {
		return cached, nil
	}

	resolved, err, _ := c.group.Do(cacheKey, func() (any, error) {
		return c.resolveItemCode(ctx, code, equipmentName)
	})
	if err != nil {
		return "", err
	}
	c.cacheSet(ctx, cacheKey, resolved.(string))
	return resolved.(string), nil
}

func (c *Client) resolveItemCode(ctx context.Context, code, equipmentName string) (string, error) {
	var envelope itemEnvelope
	err := c.do(ctx, http.MethodGet, itemPath+"/"+url.PathEscape(code), nil, nil, &envelope)
	if err == nil {
		return envelope.Data.ItemCode, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return "", err
	}

	// Fuzzy pass: another code may already cover this equipment name.
	if match, err := c.searchItemByName(ctx, equipmentName); err == nil && match != "" {
		return match, nil
	}

	created := itemDoc{
		ItemCode:    code,
		ItemName:    strings.TrimSpace(equipmentName),
		ItemGroup:   itemGroup,
		StockUOM:    "Nos",
		IsStockItem: 0,
	}
	if err := c.do(ctx, http.MethodPost, itemPath, nil, created, &envelope); err != nil {
		return "", err
	}
	c.logger.Info("provisioned catalog item", slog.String("item_code", code))
	return envelope.Data.ItemCode, nil
}

func (c *Client) searchItemByName(ctx context.Context, equipmentName string) (string, error) {
	name := strings.TrimSpace(equipmentName)
	if name == "" {
		return "", nil
	}
	filters, err := json.Marshal([][]any{{"item_name", "like", "%" + name + "%"}})
	if err != nil {
		return "", err
	}
	query := url.Values{}
	query.Set("filters", string(filters))
	query.Set("fields", `["item_code","item_name"]`)
	query.Set("limit_page_length", "1")

	var envelope itemListEnvelope
	if err := c.do(ctx, http.MethodGet, itemPath, query, nil, &envelope); err != nil {
		return "", err
	}
	if len(envelope.Data) == 0 {
		return "", nil
	}
	return envelope.Data[0].ItemCode, nil
}

// IncomeAccount resolves the income account by convention, falling
// back to the default when the lookup fails or finds nothing.
func (c *Client) IncomeAccount(ctx context.Context) string {
	return c.lookupAccount(ctx, "Income Account", defaultIncomeAccount)
}

// ReceivableAccount resolves the receivable account by convention.
func (c *Client) ReceivableAccount(ctx context.Context) string {
	return c.lookupAccount(ctx, "Receivable", defaultReceivableAccount)
}

// VATAccountHead resolves the VAT tax account head by convention.
func (c *Client) VATAccountHead(ctx context.Context) string {
	return c.lookupAccount(ctx, "Tax", defaultVATAccount)
}

func (c *Client) lookupAccount(ctx context.Context, accountType, fallback string) string {
	cacheKey := "erpnext:account:" + accountType
	if cached := c.cacheGet(ctx, cacheKey); cached != "" {
		return cached
	}

	resolved, err, _ := c.group.Do(cacheKey, func() (any, error) {
		filters, err := json.Marshal([][]any{
			{"account_type", "=", accountType},
			{"is_group", "=", 0},
		})
		if err != nil {
			return "", err
		}
		query := url.Values{}
		query.Set("filters", string(filters))
		query.Set("fields", `["name","account_type"]`)
		query.Set("limit_page_length", "1")

		var envelope accountListEnvelope
		if err := c.do(ctx, http.MethodGet, accountPath, query, nil, &envelope); err != nil {
			return "", err
		}
		if len(envelope.Data) == 0 {
			return "", nil
		}
		return envelope.Data[0].Name, nil
	})
	if err != nil || resolved.(string) == "" {
		if err != nil {
			c.logger.Warn("account lookup failed, using fallback",
				slog.String("account_type", accountType),
				slog.String("fallback", fallback),
				slog.Any("error", err))
		}
		return fallback
	}
	c.cacheSet(ctx, cacheKey, resolved.(string))
	return resolved.(string)
}

func (c *Client) cacheGet(ctx context.Context, key string) string {
	if c.redis == nil {
		return ""
	}
	value, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return ""
	}
	return value
}

func (c *Client) cacheSet(ctx context.Context, key, value string) {
	if c.redis == nil || value == "" {
		return
	}
	if err := c.redis.Set(ctx, key, value, catalogCacheTTL).Err(); err != nil {
		c.logger.Warn("cache catalog entry", slog.String("key", key), slog.Any("error", err))
	}
}
