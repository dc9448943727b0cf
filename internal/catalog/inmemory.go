package catalog

import (
	"context"
	"os"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// InMemoryStore is a catalog held in process, loaded from a YAML seed.
type InMemoryStore struct {
	mu      sync.RWMutex
	shops   map[int32]Shop
	storage map[int32]StorageKeeper
	beauty  map[Gender]BeautyStyles
}

func NewInMemoryStore(data Data) *InMemoryStore {
	s := &InMemoryStore{}
	s.Replace(data)
	return s
}

// LoadFile parses a YAML catalog from path.
func LoadFile(path string) (Data, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Data{}, errors.Wrapf(err, "read catalog %q", path)
	}
	return Parse(blob)
}

func Parse(blob []byte) (Data, error) {
	var data Data
	if err := yaml.Unmarshal(blob, &data); err != nil {
		return Data{}, errors.Wrap(err, "parse catalog yaml")
	}
	return data, nil
}

// Replace swaps the whole catalog.
func (s *InMemoryStore) Replace(data Data) {
	shops := make(map[int32]Shop, len(data.Shops))
	for _, shop := range data.Shops {
		shops[shop.NPCID] = shop
	}
	storage := make(map[int32]StorageKeeper, len(data.Storage))
	for _, k := range data.Storage {
		storage[k.NPCID] = k
	}
	beauty := map[Gender]BeautyStyles{
		GenderMale:   sortedStyles(data.Male),
		GenderFemale: sortedStyles(data.Female),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.shops = shops
	s.storage = storage
	s.beauty = beauty
}

func sortedStyles(b BeautyStyles) BeautyStyles {
	out := BeautyStyles{Faces: slices.Clone(b.Faces), Hairs: slices.Clone(b.Hairs)}
	slices.Sort(out.Faces)
	out.Faces = slices.Compact(out.Faces)
	slices.Sort(out.Hairs)
	out.Hairs = slices.Compact(out.Hairs)
	return out
}

func (s *InMemoryStore) ShopByNPC(_ context.Context, npcID int32) (Shop, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shop, ok := s.shops[npcID]
	if !ok {
		return Shop{}, false, nil
	}
	shop.Items = slices.Clone(shop.Items)
	return shop, true, nil
}

func (s *InMemoryStore) StorageByNPC(_ context.Context, npcID int32) (StorageKeeper, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.storage[npcID]
	return k, ok, nil
}

func (s *InMemoryStore) Faces(_ context.Context, gender Gender) ([]int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.beauty[gender]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownGender, "gender %d", gender)
	}
	return slices.Clone(b.Faces), nil
}

func (s *InMemoryStore) Hairs(_ context.Context, gender Gender) ([]int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.beauty[gender]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownGender, "gender %d", gender)
	}
	return slices.Clone(b.Hairs), nil
}

func (s *InMemoryStore) Close() error { return nil }
