// Package catalog loads the menu served to both the table and bot channels.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store"

	"gopkg.in/yaml.v3"
)

//go:embed menu.yaml
var defaultMenu []byte

type Product struct {
	ID          int64        `json:"id"`
	Name        string       `json:"nome"`
	Price       models.Money `json:"preco"`
	CategoryKey string       `json:"categoria"`
}

type Category struct {
	Key      string    `json:"chave"`
	Name     string    `json:"nome"`
	Products []Product `json:"produtos"`
}

type menuFile struct {
	Categories []struct {
		Key      string `yaml:"chave"`
		Name     string `yaml:"nome"`
		Products []struct {
			ID    int64  `yaml:"id"`
			Name  string `yaml:"nome"`
			Price string `yaml:"preco"`
		} `yaml:"produtos"`
	} `yaml:"categorias"`
}

// Menu is immutable after load.
type Menu struct {
	categories []Category
	byKey      map[string]int
	byID       map[int64]Product
}

// Load reads the menu at path, or the built-in menu when path is empty.
func Load(path string) (*Menu, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultMenu)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Menu, error) {
	var file menuFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse menu: %w", err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("menu has no categories")
	}

	menu := &Menu{byKey: make(map[string]int), byID: make(map[int64]Product)}
	for _, rawCategory := range file.Categories {
		key := strings.TrimSpace(rawCategory.Key)
		if key == "" || strings.TrimSpace(rawCategory.Name) == "" {
			return nil, fmt.Errorf("category key and name are required")
		}
		if _, dup := menu.byKey[key]; dup {
			return nil, fmt.Errorf("duplicate category %q", key)
		}
		category := Category{Key: key, Name: rawCategory.Name}
		for _, rawProduct := range rawCategory.Products {
			price, err := models.ParseMoney(rawProduct.Price)
			if err != nil {
				return nil, fmt.Errorf("product %d: %w", rawProduct.ID, err)
			}
			if rawProduct.ID <= 0 || strings.TrimSpace(rawProduct.Name) == "" || price < 0 {
				return nil, fmt.Errorf("product %d: id, name and a non-negative price are required", rawProduct.ID)
			}
			if _, dup := menu.byID[rawProduct.ID]; dup {
				return nil, fmt.Errorf("duplicate product id %d", rawProduct.ID)
			}
			product := Product{ID: rawProduct.ID, Name: rawProduct.Name, Price: price, CategoryKey: key}
			category.Products = append(category.Products, product)
			menu.byID[product.ID] = product
		}
		menu.byKey[key] = len(menu.categories)
		menu.categories = append(menu.categories, category)
	}
	return menu, nil
}

// Categories returns categories in menu order.
func (m *Menu) Categories() []Category {
	out := make([]Category, len(m.categories))
	copy(out, m.categories)
	return out
}

func (m *Menu) Category(key string) (Category, error) {
	i, ok := m.byKey[key]
	if !ok {
		return Category{}, store.ErrCategoryNotFound
	}
	return m.categories[i], nil
}

func (m *Menu) Product(id int64) (Product, error) {
	product, ok := m.byID[id]
	if !ok {
		return Product{}, store.ErrProductNotFound
	}
	return product, nil
}
