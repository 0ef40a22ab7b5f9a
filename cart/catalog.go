package cart

import (
	"github.com/shopspring/decimal"
	"github.com/thoas/go-funk"
)

type Department int

const (
	Bed Department = iota
	Bath
	Kitchen
	Dining
	Decor
	Appliances
	Furniture
	Electronics
	Outdoor
	Organization
	Others
)

var departmentLabels = map[Department]string{
	Bed:          "Cama",
	Bath:         "Banho",
	Kitchen:      "Cozinha",
	Dining:       "Jantar",
	Decor:        "Decoração",
	Appliances:   "Eletrodomésticos",
	Furniture:    "Móveis",
	Electronics:  "Eletrônicos",
	Outdoor:      "Área externa",
	Organization: "Organização",
	Others:       "Outros",
}

func (d Department) Label() string {
	if label, ok := departmentLabels[d]; ok {
		return label
	}
	return departmentLabels[Others]
}

type Gift struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Store       string          `json:"store"`
	URL         string          `json:"url"`
	Department  Department      `json:"department"`
}

// PriceCents converts the catalog price to minor units.
func (g Gift) PriceCents() int64 {
	return g.Price.Shift(2).Round(0).IntPart()
}

type Catalog struct {
	gifts []Gift
}

func NewCatalog(gifts []Gift) *Catalog {
	return &Catalog{gifts: gifts}
}

func (c *Catalog) All() []Gift {
	out := make([]Gift, len(c.gifts))
	copy(out, c.gifts)
	return out
}

func (c *Catalog) Find(id string) (Gift, bool) {
	found := funk.Find(c.gifts, func(g Gift) bool { return g.ID == id })
	if found == nil {
		return Gift{}, false
	}
	return found.(Gift), true
}

func (c *Catalog) ByDepartment(d Department) []Gift {
	return funk.Filter(c.gifts, func(g Gift) bool { return g.Department == d }).([]Gift)
}

// DefaultCatalog is the couple's registry.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Gift{
		{
			ID:          "mmartan-001",
			Name:        "Jogo de Toalhas Banho + Rosto + Piso Lótus 5 Peças",
			Price:       decimal.RequireFromString("499.90"),
			Description: "Conjunto completo de toalhas de banho, rosto e piso.",
			Store:       "Mmartan",
			URL:         "https://mmartan.com.br/pr/jogo-de-toalhas-banho--rosto--piso-lotus-5-pecas/MMLEBTJ5ZLO0001",
			Department:  Bath,
		},
		{
			ID:          "mmartan-002",
			Name:        "Aromatizador de Ambiente 230 ml Bamboo",
			Price:       decimal.RequireFromString("229.90"),
			Description: "Aromatizador de ambiente com fragrância Bamboo.",
			Store:       "Mmartan",
			URL:         "https://mmartan.com.br/pr/aromatizador-de-ambiente-230-ml-bamboo/CASA2.BAMT22VD",
			Department:  Others,
		},
		{
			ID:          "mmartan-003",
			Name:        "Bandeja Metal Espelhada Louis",
			Price:       decimal.RequireFromString("329.90"),
			Description: "Bandeja oval em metal com base espelhada.",
			Store:       "Mmartan",
			URL:         "https://mmartan.com.br/pr/bandeja-metal-espelhada-louis/MMBANOVAZ1LOUIS",
			Department:  Decor,
		},
		{
			ID:          "mmartan-004",
			Name:        "Bandeja Metal Farmer",
			Price:       decimal.RequireFromString("379.90"),
			Description: "Bandeja em metal com acabamento rústico.",
			Store:       "Mmartan",
			URL:         "https://mmartan.com.br/pr/bandeja-metal-farmer/MMBANRETZ1FARME",
			Department:  Decor,
		},
		{
			ID:          "mmartan-005",
			Name:        "Edredom Percal Fibra Siliconizada Station",
			Price:       decimal.RequireFromString("599.00"),
			Description: "Edredom em percal com enchimento de fibra siliconizada.",
			Store:       "Mmartan",
			URL:         "https://mmartan.com.br/pr/edredom-percal-fibra-siliconizada-station/MI18EEDSZSTAAZ",
			Department:  Bed,
		},
		{
			ID:          "mmartan-006",
			Name:        "Jogo de Lençol Bordado Inglês Percal 200 Fios 100% Algodão Irina",
			Price:       decimal.RequireFromString("299.00"),
			Description: "Jogo de lençol em percal 200 fios com bordado inglês.",
			Store:       "Mmartan",
			URL:         "https://mmartan.com.br/pr/jogo-de-lencol-bordado-ingles-percal-200-fios-100-algodao-irina/LBN2H.IRIP22RO",
			Department:  Bed,
		},
	})
}
