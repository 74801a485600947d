package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autofix-platform/autofix/pkg/events"
)

func newTestOrder(t *testing.T) *WorkOrder {
	t.Helper()

	order, err := NewWorkOrder("tenant-1", "WO-2026-0001",
		CustomerSnapshot{CustomerID: "cust-1", Name: "Maria Alvarez", Phone: "555-0101"},
		VehicleSnapshot{VehicleID: "veh-1", Make: "Toyota", Model: "Corolla", Year: 2019})
	require.NoError(t, err)
	return order
}

func testPartItem(t *testing.T, sku string, quantity int, unitPrice int64) OrderItem {
	t.Helper()

	parsed, err := NewSKU(sku)
	require.NoError(t, err)
	price, err := NewMoney(unitPrice, "USD")
	require.NoError(t, err)

	item, err := NewPartItem(parsed, "Part "+sku, quantity, price, ZeroMoney("USD"))
	require.NoError(t, err)
	return item
}

func testServiceItem(t *testing.T, code string, quantity int, unitPrice int64) OrderItem {
	t.Helper()

	price, err := NewMoney(unitPrice, "USD")
	require.NoError(t, err)

	item, err := NewServiceItem(code, "tech-1", quantity, price, ZeroMoney("USD"))
	require.NoError(t, err)
	return item
}

// advance walks the order to the target status through the allowed path
func advance(t *testing.T, order *WorkOrder, target WorkOrderStatus) {
	t.Helper()

	path := map[WorkOrderStatus][]WorkOrderStatus{
		StatusDraft:           {},
		StatusPendingApproval: {StatusPendingApproval},
		StatusApproved:        {StatusPendingApproval, StatusApproved},
		StatusInProgress:      {StatusPendingApproval, StatusApproved, StatusInProgress},
		StatusCompleted:       {StatusPendingApproval, StatusApproved, StatusInProgress, StatusCompleted},
		StatusCanceled:        {StatusCanceled},
	}

	for _, step := range path[target] {
		require.NoError(t, order.ChangeStatus(step, "tester"))
	}
	order.PullDomainEvents()
}

func eventNames(order *WorkOrder) []string {
	drained := order.PullDomainEvents()
	names := make([]string, 0, len(drained))
	for _, e := range drained {
		names = append(names, e.EventName())
	}
	return names
}

func TestNewWorkOrder(t *testing.T) {
	order := newTestOrder(t)

	assert.Equal(t, StatusDraft, order.Status)
	assert.Equal(t, "WO-2026-0001", order.OrderNumber)
	assert.Empty(t, order.Items)
	assert.Equal(t, int64(0), order.Version)
	assert.Nil(t, order.CompletedAt)
	assert.Equal(t, []string{events.WorkOrderCreated}, eventNames(order))
}

func TestNewWorkOrder_Validation(t *testing.T) {
	customer := CustomerSnapshot{CustomerID: "cust-1", Name: "Maria Alvarez"}
	vehicle := VehicleSnapshot{VehicleID: "veh-1", Make: "Toyota", Model: "Corolla"}

	tests := []struct {
		name        string
		orderNumber string
		customer    CustomerSnapshot
		vehicle     VehicleSnapshot
		expectedErr error
	}{
		{"empty order number", "", customer, vehicle, ErrInvalidOrderNumber},
		{"missing customer name", "WO-1", CustomerSnapshot{CustomerID: "cust-1"}, vehicle, ErrInvalidCustomer},
		{"missing vehicle model", "WO-1", customer, VehicleSnapshot{VehicleID: "veh-1", Make: "Toyota"}, ErrInvalidVehicle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWorkOrder("tenant-1", tt.orderNumber, tt.customer, tt.vehicle)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestChangeStatus_EdgeTable(t *testing.T) {
	statuses := []WorkOrderStatus{
		StatusDraft, StatusPendingApproval, StatusApproved,
		StatusInProgress, StatusCompleted, StatusCanceled,
	}

	allowed := map[WorkOrderStatus]map[WorkOrderStatus]bool{
		StatusDraft:           {StatusPendingApproval: true, StatusCanceled: true},
		StatusPendingApproval: {StatusApproved: true, StatusDraft: true, StatusCanceled: true},
		StatusApproved:        {StatusInProgress: true, StatusCanceled: true},
		StatusInProgress:      {StatusCompleted: true, StatusCanceled: true},
		StatusCompleted:       {},
		StatusCanceled:        {},
	}

	for _, from := range statuses {
		for _, to := range statuses {
			t.Run(string(from)+"_to_"+string(to), func(t *testing.T) {
				order := newTestOrder(t)
				order.AddItem(testPartItem(t, "BRK-PAD-001", 2, 4500))
				advance(t, order, from)
				require.Equal(t, from, order.Status)

				err := order.ChangeStatus(to, "tester")

				switch {
				case from == to:
					assert.NoError(t, err)
					assert.Equal(t, from, order.Status)
					assert.Empty(t, order.PullDomainEvents())
				case allowed[from][to]:
					assert.NoError(t, err)
					assert.Equal(t, to, order.Status)
				default:
					assert.True(t, IsInvalidStatusTransition(err),
						"expected InvalidStatusTransition, got %v", err)
					assert.Equal(t, from, order.Status)
				}
			})
		}
	}
}

func TestChangeStatus_EmitsStatusChanged(t *testing.T) {
	order := newTestOrder(t)
	order.PullDomainEvents()

	require.NoError(t, order.ChangeStatus(StatusPendingApproval, "advisor-1"))

	drained := order.PullDomainEvents()
	require.Len(t, drained, 1)
	changed := drained[0].(*WorkOrderStatusChangedEvent)
	assert.Equal(t, string(StatusDraft), changed.OldStatus)
	assert.Equal(t, string(StatusPendingApproval), changed.NewStatus)
	assert.Equal(t, "advisor-1", changed.ChangedBy)
}

func TestApprove_EmitsApprovedWithItemLines(t *testing.T) {
	order := newTestOrder(t)
	require.NoError(t, order.AddItem(testPartItem(t, "BRK-PAD-001", 2, 4500)))
	require.NoError(t, order.AddItem(testServiceItem(t, "SVC-BRAKES", 1, 12000)))
	require.NoError(t, order.ChangeStatus(StatusPendingApproval, "advisor-1"))
	order.PullDomainEvents()

	require.NoError(t, order.ChangeStatus(StatusApproved, "manager-1"))

	drained := order.PullDomainEvents()
	require.Len(t, drained, 2)
	assert.Equal(t, events.WorkOrderStatusChanged, drained[0].EventName())

	approved := drained[1].(*WorkOrderApprovedEvent)
	assert.Equal(t, "manager-1", approved.ApprovedBy)
	require.Len(t, approved.Items, 2)
	assert.Equal(t, "BRK-PAD-001", approved.Items[0].SKU)
	assert.Equal(t, string(ItemTypePart), approved.Items[0].Type)
	assert.Equal(t, 2, approved.Items[0].Quantity)
	assert.Empty(t, approved.Items[1].SKU)
	assert.Equal(t, string(ItemTypeService), approved.Items[1].Type)
}

func TestComplete(t *testing.T) {
	order := newTestOrder(t)
	require.NoError(t, order.AddItem(testPartItem(t, "OIL-FLT-001", 1, 1500)))
	advance(t, order, StatusInProgress)

	require.NoError(t, order.Complete("tech-1"))

	assert.Equal(t, StatusCompleted, order.Status)
	require.NotNil(t, order.CompletedAt)

	drained := order.PullDomainEvents()
	require.Len(t, drained, 2)
	completed := drained[1].(*WorkOrderCompletedEvent)
	assert.Equal(t, events.WorkOrderCompleted, completed.EventName())
	require.Len(t, completed.Items, 1)
	assert.Equal(t, "OIL-FLT-001", completed.Items[0].SKU)
	assert.Equal(t, 1, completed.Items[0].Quantity)
	assert.Equal(t, *order.CompletedAt, completed.CompletedAt)

	// Completing twice is a mutation on a finalized order
	assert.ErrorIs(t, order.Complete("tech-1"), ErrAlreadyFinalized)
}

func TestComplete_RequiresItems(t *testing.T) {
	order := newTestOrder(t)
	advance(t, order, StatusInProgress)

	assert.ErrorIs(t, order.Complete("tech-1"), ErrInvalidOperation)
	assert.Equal(t, StatusInProgress, order.Status)
	assert.Nil(t, order.CompletedAt)
}

func TestComplete_OnlyFromInProgress(t *testing.T) {
	order := newTestOrder(t)
	order.AddItem(testPartItem(t, "OIL-FLT-001", 1, 1500))
	order.PullDomainEvents()

	err := order.Complete("tech-1")
	assert.True(t, IsInvalidStatusTransition(err))
}

func TestTerminalOrder_RejectsMutations(t *testing.T) {
	order := newTestOrder(t)
	item := testPartItem(t, "BRK-PAD-001", 2, 4500)
	require.NoError(t, order.AddItem(item))
	advance(t, order, StatusCanceled)

	assert.ErrorIs(t, order.AddItem(testPartItem(t, "OIL-FLT-001", 1, 1500)), ErrAlreadyFinalized)
	assert.ErrorIs(t, order.RemoveItem(item.ID), ErrAlreadyFinalized)
	assert.ErrorIs(t, order.UpdateNotes("late note"), ErrAlreadyFinalized)
	assert.Len(t, order.Items, 1)
}

func TestRemoveItem(t *testing.T) {
	order := newTestOrder(t)
	item := testPartItem(t, "BRK-PAD-001", 2, 4500)
	require.NoError(t, order.AddItem(item))

	require.NoError(t, order.RemoveItem(item.ID))
	assert.Empty(t, order.Items)

	assert.ErrorIs(t, order.RemoveItem("missing"), ErrItemNotFound)
}

func TestTotals(t *testing.T) {
	order := newTestOrder(t)
	require.NoError(t, order.AddItem(testPartItem(t, "BRK-PAD-001", 2, 4500)))  // 9000
	require.NoError(t, order.AddItem(testPartItem(t, "OIL-FLT-001", 1, 1500)))  // 1500
	require.NoError(t, order.AddItem(testServiceItem(t, "SVC-BRAKES", 2, 6000))) // 12000

	parts, err := order.PartsTotal("USD")
	require.NoError(t, err)
	assert.Equal(t, int64(10500), parts.Amount())

	labor, err := order.LaborTotal("USD")
	require.NoError(t, err)
	assert.Equal(t, int64(12000), labor.Amount())

	grand, err := order.GrandTotal("USD")
	require.NoError(t, err)
	assert.Equal(t, int64(22500), grand.Amount())
}

func TestPullDomainEventsDrainsBuffer(t *testing.T) {
	order := newTestOrder(t)

	first := order.PullDomainEvents()
	assert.Len(t, first, 1)
	assert.Empty(t, order.PullDomainEvents())
}

func TestVersionUntouchedByMutations(t *testing.T) {
	order := newTestOrder(t)
	order.AddItem(testPartItem(t, "BRK-PAD-001", 1, 4500))
	order.UpdateNotes("check rotors")
	require.NoError(t, order.ChangeStatus(StatusPendingApproval, "advisor-1"))

	assert.Equal(t, int64(0), order.Version)
}
