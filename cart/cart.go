package cart

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/thoas/go-funk"
)

var ErrUnknownGift = errors.New("unknown gift")

type Line struct {
	Gift     Gift  `json:"gift"`
	Quantity int   `json:"quantity"`
	Subtotal int64 `json:"subtotal"`
}

// Cart maps gift ids to selected quantities.
type Cart struct {
	catalog *Catalog

	mu    sync.Mutex
	items map[string]int
}

func New(catalog *Catalog) *Cart {
	return &Cart{catalog: catalog, items: make(map[string]int)}
}

func (c *Cart) Add(id string) error {
	if _, ok := c.catalog.Find(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGift, id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[id]++
	return nil
}

// Remove takes one unit of id out of the cart.
func (c *Cart) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items[id] > 1 {
		c.items[id]--
		return
	}
	delete(c.items, id)
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]int)
}

func (c *Cart) Quantity(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[id]
}

func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return funk.SumInt(funk.Values(c.items).([]int))
}

func (c *Cart) Empty() bool {
	return c.TotalItems() == 0
}

// Lines lists the cart content ordered by gift id.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := funk.Keys(c.items).([]string)
	sort.Strings(ids)

	lines := make([]Line, 0, len(ids))
	for _, id := range ids {
		gift, ok := c.catalog.Find(id)
		if !ok {
			continue
		}
		qty := c.items[id]
		lines = append(lines, Line{Gift: gift, Quantity: qty, Subtotal: gift.PriceCents() * int64(qty)})
	}
	return lines
}

// TotalCents is the amount to charge in minor units.
func (c *Cart) TotalCents() int64 {
	var total int64
	for _, l := range c.Lines() {
		total += l.Subtotal
	}
	return total
}

// Description is the text sent with the PIX charge.
func (c *Cart) Description() string {
	n := len(c.Lines())
	if n == 0 {
		return "Compra"
	}
	return fmt.Sprintf("Compra de %d item(ns)", n)
}

// Metadata encodes the cart lines as id:quantity pairs for the charge.
func (c *Cart) Metadata() map[string]string {
	lines := c.Lines()
	if len(lines) == 0 {
		return nil
	}
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, l.Gift.ID+":"+strconv.Itoa(l.Quantity))
	}
	return map[string]string{"items": strings.Join(parts, ",")}
}
