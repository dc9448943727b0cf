package catalog

import (
	"context"
	"errors"
)

// Gender keys the beauty catalogs. Values match the character record.
type Gender uint8

const (
	GenderMale   Gender = 0
	GenderFemale Gender = 1
)

// ShopItem is one entry of an NPC shop listing.
type ShopItem struct {
	ItemID int32 `json:"item_id" yaml:"item_id"`
	Price  int32 `json:"price" yaml:"price"`
}

// Shop describes the shop opened by an NPC.
type Shop struct {
	NPCID int32      `json:"npc_id" yaml:"npc_id"`
	Items []ShopItem `json:"items" yaml:"items"`
}

// StorageKeeper describes an NPC that opens the player's storage.
type StorageKeeper struct {
	NPCID        int32 `json:"npc_id" yaml:"npc_id"`
	DepositCost  int32 `json:"deposit_cost" yaml:"deposit_cost"`
	WithdrawCost int32 `json:"withdraw_cost" yaml:"withdraw_cost"`
}

// BeautyStyles lists face and hair ids available to one gender.
type BeautyStyles struct {
	Faces []int32 `json:"faces" yaml:"faces"`
	Hairs []int32 `json:"hairs" yaml:"hairs"`
}

// Data is the serialized form of a whole catalog, used for seeding.
type Data struct {
	Shops   []Shop          `json:"shops" yaml:"shops"`
	Storage []StorageKeeper `json:"storage" yaml:"storage"`
	Male    BeautyStyles    `json:"male" yaml:"male"`
	Female  BeautyStyles    `json:"female" yaml:"female"`
}

var ErrUnknownGender = errors.New("unknown gender")

// Store serves read-only NPC catalogs.
type Store interface {
	ShopByNPC(ctx context.Context, npcID int32) (Shop, bool, error)
	StorageByNPC(ctx context.Context, npcID int32) (StorageKeeper, bool, error)
	// Faces and Hairs return style ids in ascending order.
	Faces(ctx context.Context, gender Gender) ([]int32, error)
	Hairs(ctx context.Context, gender Gender) ([]int32, error)
	Close() error
}
