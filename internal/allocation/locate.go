package allocation

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
	"github.com/angelmondragon/branchledger/pkg/types"
)

// ItemRef points at an item inside a manifest. ID wins when it matches;
// otherwise OrderIndex together with Description must match an item that has
// no conflicting ID.
type ItemRef struct {
	ID          *uuid.UUID
	OrderIndex  *int
	Description string
}

// Locate returns the index of the referenced item.
func Locate(items []types.ManifestItem, ref ItemRef) (int, error) {
	if ref.ID != nil {
		for idx, item := range items {
			if item.ID != nil && *item.ID == *ref.ID {
				return idx, nil
			}
		}
	}

	desc := strings.TrimSpace(ref.Description)
	if ref.OrderIndex != nil && desc != "" {
		for idx, item := range items {
			if item.ID != nil && ref.ID != nil && *item.ID != *ref.ID {
				continue
			}
			if item.OrderIndex == *ref.OrderIndex && strings.TrimSpace(item.Description) == desc {
				return idx, nil
			}
		}
	}

	details := map[string]any{}
	if ref.ID != nil {
		details["item_id"] = ref.ID.String()
	}
	if ref.OrderIndex != nil {
		details["order_index"] = *ref.OrderIndex
	}
	if desc != "" {
		details["description"] = desc
	}
	return -1, pkgerrors.New(pkgerrors.CodeNotFound, "item not found in manifest").WithDetails(details)
}
