package allocation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/branchledger/pkg/enums"
	"github.com/angelmondragon/branchledger/pkg/types"
)

// PendingFollowUp is the manual step left behind by a dispatch: hand the
// quantity to a customer, or raise an outgoing manifest toward a branch.
// Dispatch never performs that step itself.
type PendingFollowUp struct {
	Kind             enums.FollowUpKind `json:"kind"`
	ItemID           *uuid.UUID         `json:"item_id,omitempty"`
	ItemOrderIndex   int                `json:"item_order_index"`
	ItemDescription  string             `json:"item_description"`
	DispatchRecordID uuid.UUID          `json:"dispatch_record_id"`
	Quantity         int                `json:"quantity"`
	TargetName       string             `json:"target_name"`
	TargetPhone      string             `json:"target_phone,omitempty"`
	Region           string             `json:"region,omitempty"`
	OperatorID       string             `json:"operator_id"`
	RequestedAt      time.Time          `json:"requested_at"`
}

func newFollowUp(item types.ManifestItem, record types.DispatchRecord) PendingFollowUp {
	f := PendingFollowUp{
		Kind:             enums.FollowUpKindFor(record.DestinationKind),
		ItemOrderIndex:   item.OrderIndex,
		ItemDescription:  item.Description,
		DispatchRecordID: record.ID,
		Quantity:         record.Amount,
		OperatorID:       record.OperatorID,
		RequestedAt:      record.DispatchedAt,
	}
	if item.ID != nil {
		id := *item.ID
		f.ItemID = &id
	}
	switch record.DestinationKind {
	case enums.DestinationBranch:
		f.TargetName = record.BranchName
	default:
		f.TargetName = record.CustomerName
		f.TargetPhone = record.CustomerPhone
		f.Region = record.Region
	}
	return f
}

// Message renders the advisory confirmation shown to the operator.
func (f PendingFollowUp) Message() string {
	switch f.Kind {
	case enums.FollowUpCreateOutgoingManifest:
		return fmt.Sprintf("%d x %s dispatched toward branch %s; create an outgoing manifest to route it.",
			f.Quantity, f.ItemDescription, f.TargetName)
	default:
		target := f.TargetName
		if f.Region != "" {
			target = fmt.Sprintf("%s (%s)", f.TargetName, f.Region)
		}
		return fmt.Sprintf("%d x %s dispatched to customer %s; arrange the delivery.",
			f.Quantity, f.ItemDescription, target)
	}
}
