package dialog

import (
	"context"
	"slices"

	"github.com/pkg/errors"
)

var skinColors = []int8{0, 1, 2, 3, 4}

// SkinColors lists every selectable skin tone.
func (c *Conversation) SkinColors() []int8 {
	return slices.Clone(skinColors)
}

func (c *Conversation) beauty(ctx context.Context, hair bool) (Appearance, []int32, error) {
	p := c.peer()
	if p == nil {
		return Appearance{}, nil, ErrConversationInterrupted
	}
	if c.catalogs.Beauty == nil {
		return Appearance{}, nil, errors.New("no beauty catalog configured")
	}
	look := p.Appearance()
	var (
		ids []int32
		err error
	)
	if hair {
		ids, err = c.catalogs.Beauty.Hairs(ctx, look.Gender)
	} else {
		ids, err = c.catalogs.Beauty.Faces(ctx, look.Gender)
	}
	if err != nil {
		return Appearance{}, nil, errors.Wrap(err, "look up beauty catalog")
	}
	return look, ids, nil
}

// EyeStyles lists every face in the player's current eye color, falling back
// to the base color when a face has no such variant.
func (c *Conversation) EyeStyles(ctx context.Context) ([]int32, error) {
	look, faces, err := c.beauty(ctx, false)
	if err != nil {
		return nil, err
	}
	color := look.Face%1000 - look.Face%100
	return variants(faces, func(id int32) (int32, int32) {
		base := id - id%1000 + id%100
		return base, base + color
	}), nil
}

// EyeColors lists the colors available for the player's current face.
func (c *Conversation) EyeColors(ctx context.Context) ([]int32, error) {
	look, faces, err := c.beauty(ctx, false)
	if err != nil {
		return nil, err
	}
	base := look.Face - look.Face%1000 + look.Face%100
	return present(faces, base, 100), nil
}

// HairStyles lists every hair in the player's current hair color, falling
// back to the base color when a style has no such variant.
func (c *Conversation) HairStyles(ctx context.Context) ([]int32, error) {
	look, hairs, err := c.beauty(ctx, true)
	if err != nil {
		return nil, err
	}
	color := look.Hair % 10
	return variants(hairs, func(id int32) (int32, int32) {
		base := id - id%10
		return base, base + color
	}), nil
}

func (c *Conversation) HairColors(ctx context.Context) ([]int32, error) {
	look, hairs, err := c.beauty(ctx, true)
	if err != nil {
		return nil, err
	}
	return present(hairs, look.Hair-look.Hair%10, 1), nil
}

func (c *Conversation) IsFaceValid(ctx context.Context, id int32) (bool, error) {
	_, faces, err := c.beauty(ctx, false)
	if err != nil {
		return false, err
	}
	return slices.Contains(faces, id), nil
}

func (c *Conversation) IsHairValid(ctx context.Context, id int32) (bool, error) {
	_, hairs, err := c.beauty(ctx, true)
	if err != nil {
		return false, err
	}
	return slices.Contains(hairs, id), nil
}

// variants maps every id to its preferred variant, or its base when the
// variant is not in ids, keeping first-seen order without duplicates.
func variants(ids []int32, split func(id int32) (base, variant int32)) []int32 {
	out := make([]int32, 0, len(ids))
	for _, id := range ids {
		base, variant := split(id)
		pick := base
		if slices.Contains(ids, variant) {
			pick = variant
		}
		if !slices.Contains(out, pick) {
			out = append(out, pick)
		}
	}
	return out
}

// present returns base + i*step for i in 0..9 when listed in ids.
func present(ids []int32, base, step int32) []int32 {
	var out []int32
	for i := int32(0); i < 10; i++ {
		if id := base + i*step; slices.Contains(ids, id) {
			out = append(out, id)
		}
	}
	return out
}
