package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Product struct {
	ID            string         `gorm:"primaryKey"              json:"id"`
	Name          string         `gorm:"not null"                json:"name"`
	Description   string         `gorm:"not null"                json:"description"`
	Price         float64        `gorm:"not null;check:price>=0" json:"price"`
	OriginalPrice *float64       `                               json:"originalPrice,omitempty"`
	Images        pq.StringArray `gorm:"type:text"               json:"images"`
	Category      string         `gorm:"index"                   json:"category"`
	Brand         string         `                               json:"brand"`
	InStock       bool           `gorm:"default:true"            json:"inStock"`
	StockQuantity int            `                               json:"stockQuantity"`
	Rating        float64        `                               json:"rating"`
	ReviewCount   int            `                               json:"reviewCount"`
	Tags          pq.StringArray `gorm:"type:text"               json:"tags"`
}

func (Product) TableName() string {
	return "products"
}

type CartLineItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	Email         string    `gorm:"uniqueIndex;not null"  json:"email"`
	PasswordHash  string    `gorm:"not null"              json:"-"`
	DisplayName   string    `                             json:"displayName"`
	PhotoURL      string    `                             json:"photoURL"`
	EmailVerified bool      `gorm:"default:false"         json:"emailVerified"`
	Disabled      bool      `gorm:"default:false"         json:"-"`
	CreatedAt     time.Time `                             json:"createdAt"`
	LastLoginAt   time.Time `                             json:"lastLoginAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type Address struct {
	Label      string `json:"label"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"isDefault"`
}

type Preferences struct {
	Newsletter       bool `json:"newsletter"`
	OrderUpdates     bool `json:"orderUpdates"`
	Promotions       bool `json:"promotions"`
	SMSNotifications bool `json:"smsNotifications"`
}

type Profile struct {
	UserID      uuid.UUID   `gorm:"type:uuid;primaryKey" json:"userId"`
	DisplayName string      `                            json:"displayName"`
	Phone       string      `                            json:"phone"`
	Addresses   []Address   `gorm:"serializer:json"      json:"addresses"`
	Preferences Preferences `gorm:"serializer:json"      json:"preferences"`
	CreatedAt   time.Time   `                            json:"createdAt"`
	LastLoginAt time.Time   `                            json:"lastLoginAt"`
	UpdatedAt   time.Time   `                            json:"updatedAt"`
}

func (Profile) TableName() string {
	return "profiles"
}

// UserDocument is the per-user remote mirror of cart and favorites.
type UserDocument struct {
	UserID             string         `gorm:"primaryKey"      json:"userId"`
	Cart               []CartLineItem `gorm:"serializer:json" json:"cart"`
	Favorites          []Product      `gorm:"serializer:json" json:"favorites"`
	CartUpdatedAt      *time.Time     `                       json:"cartUpdatedAt,omitempty"`
	FavoritesUpdatedAt *time.Time     `                       json:"favoritesUpdatedAt,omitempty"`
}

func (UserDocument) TableName() string {
	return "user_documents"
}
