package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	cases := []struct {
		action Action
		from   Status
		to     Status
		ok     bool
	}{
		{ActionSubmit, StatusDraft, StatusSubmitted, true},
		{ActionSubmit, StatusRejected, StatusSubmitted, true},
		{ActionSubmit, StatusSubmitted, "", false},
		{ActionSubmit, StatusApproved, "", false},
		{ActionApprove, StatusSubmitted, StatusApproved, true},
		{ActionApprove, StatusPending, StatusApproved, true},
		{ActionApprove, StatusApproved, "", false},
		{ActionApprove, StatusDraft, "", false},
		{ActionReject, StatusPending, StatusRejected, true},
		{ActionReject, StatusRejected, "", false},
		{ActionEdit, StatusDraft, StatusDraft, true},
		{ActionEdit, StatusRejected, StatusRejected, true},
		{ActionEdit, StatusSubmitted, "", false},
		{ActionEdit, StatusApproved, "", false},
	}

	for _, tc := range cases {
		t.Run(string(tc.action)+" from "+string(tc.from), func(t *testing.T) {
			to, err := Transition(tc.action, tc.from)
			if !tc.ok {
				var te *TransitionError
				require.ErrorAs(t, err, &te)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, to)
		})
	}

	t.Run("conflict messages name state and action", func(t *testing.T) {
		_, err := Transition(ActionApprove, StatusApproved)
		assert.EqualError(t, err, "Timesheet is approved, cannot be approved")
		_, err = Transition(ActionReject, StatusDraft)
		assert.EqualError(t, err, "Timesheet is draft, cannot be rejected")
	})
}

func TestTimesheet_Totals(t *testing.T) {
	ts := &Timesheet{Entries: []Entry{
		{ProjectID: "p1", Hours: decimal.RequireFromString("7.5"), Billable: true},
		{ProjectID: "p2", Hours: decimal.RequireFromString("0.25"), Billable: false},
		{ProjectID: "p1", Hours: decimal.RequireFromString("2"), Billable: true},
	}}

	t.Run("totalHours is the sum of entry hours", func(t *testing.T) {
		ts.RecalculateTotals()
		assert.Equal(t, "9.75", ts.TotalHours.String())
		assert.Equal(t, "9.5", ts.BillableHours().String())
	})

	t.Run("billable costs skip non-billable entries", func(t *testing.T) {
		costs := ts.BillableCosts(decimal.NewFromInt(100))
		require.Len(t, costs, 2)
		assert.Equal(t, "750", costs[0].Amount.String())
		assert.Equal(t, "200", costs[1].Amount.String())
	})

	t.Run("hours are bounded to a day", func(t *testing.T) {
		assert.True(t, ValidHours(decimal.Zero))
		assert.True(t, ValidHours(decimal.NewFromInt(24)))
		assert.False(t, ValidHours(decimal.RequireFromString("24.01")))
		assert.False(t, ValidHours(decimal.NewFromInt(-1)))
	})
}
