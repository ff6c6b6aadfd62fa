package state

import "github.com/Skotchmaster/storefront/internal/models"

func cloneProduct(p models.Product) models.Product {
	if p.OriginalPrice != nil {
		v := *p.OriginalPrice
		p.OriginalPrice = &v
	}
	if p.Images != nil {
		p.Images = append(p.Images[:0:0], p.Images...)
	}
	if p.Tags != nil {
		p.Tags = append(p.Tags[:0:0], p.Tags...)
	}
	return p
}

func cloneItems(items []models.CartLineItem) []models.CartLineItem {
	out := make([]models.CartLineItem, len(items))
	for i, it := range items {
		out[i] = models.CartLineItem{Product: cloneProduct(it.Product), Quantity: it.Quantity}
	}
	return out
}

func cloneProducts(products []models.Product) []models.Product {
	out := make([]models.Product, len(products))
	for i, p := range products {
		out[i] = cloneProduct(p)
	}
	return out
}

func removeID(order []string, id string) []string {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
