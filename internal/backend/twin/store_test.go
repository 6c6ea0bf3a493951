package twin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSeedLoads(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadDefault())

	customers := s.Customers()
	require.Len(t, customers, 3)
	assert.Equal(t, "Aurora Apparel", customers[0].Name)
	assert.Len(t, s.nudgeLogs("cust_aurora"), 3)
	assert.Empty(t, s.nudgeLogs("cust_cobalt"))
}

func TestParseSeedRejectsGarbage(t *testing.T) {
	_, err := ParseSeed([]byte("customers: [unterminated"))
	assert.Error(t, err)
}

func TestSetTouchpointPaths(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadDefault())

	require.NoError(t, s.setTouchpoint("cust_brightside", "abandonedCart.whatsapp", true))
	require.NoError(t, s.setTouchpoint("cust_brightside", "email.followUps.enabled", true))
	c, ok := s.Customer("cust_brightside")
	require.True(t, ok)
	assert.True(t, c.Touchpoints.AbandonedCart.WhatsApp)
	assert.True(t, c.Touchpoints.Email.FollowUps.Enabled)

	assert.Error(t, s.setTouchpoint("cust_brightside", "offer.discount", true))
	assert.ErrorIs(t, s.setTouchpoint("missing", "sms", true), errCustomerNotFound)
}

func TestRecordNudgeBumpsFollowUpCounter(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadDefault())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	entry, err := s.recordNudge("cust_brightside", "emailFollowUps", "email", []string{"jonas@brightside.example"})
	require.NoError(t, err)
	assert.True(t, entry.Success)
	assert.Equal(t, fixed, entry.SentAt)

	c, _ := s.Customer("cust_brightside")
	assert.Equal(t, 1, c.Touchpoints.Email.FollowUps.NudgeCount)
	require.NotNil(t, c.Touchpoints.Email.FollowUps.LastNudgeDate)
	assert.Len(t, s.nudgeLogs("cust_brightside"), 1)
}

func TestContactsAddAndDelete(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadDefault())

	id, err := s.addContact("cust_cobalt", "email", "team@cobalt.example")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	_, err = s.addContact("cust_cobalt", "email", "team@cobalt.example")
	assert.Error(t, err)

	require.NoError(t, s.deleteContacts("cust_cobalt", "phone", []string{"+919800000123"}))
	c, _ := s.Customer("cust_cobalt")
	assert.Equal(t, []string{"+919800000456"}, c.PointOfContact.Phone)
	assert.Contains(t, c.PointOfContact.Email, "team@cobalt.example")
}

func TestMetricsFromCustomers(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadDefault())

	m := s.metrics()
	assert.Equal(t, 3, m.TotalCustomers)
	assert.Equal(t, float64(100), m.CustomerSuccessRate.ReferralWelcomePopup)
	assert.Equal(t, float64(67), m.CustomerSuccessRate.Extension)
	assert.Equal(t, float64(33), m.CustomerSuccessRate.AllCustomersCanUseCode)
	require.Len(t, m.SuccessBreakdown, 3)
	assert.Equal(t, "Aurora Apparel", m.SuccessBreakdown[0].CustomerName)
	assert.Equal(t, float64(89), m.SuccessBreakdown[0].SuccessRate)
}

func TestFailNextIsConsumedOnce(t *testing.T) {
	s := New()
	s.FailNext(OpSendNudge, "quota exceeded")

	msg, found := s.track(OpSendNudge)
	assert.True(t, found)
	assert.Equal(t, "quota exceeded", msg)
	_, found = s.track(OpSendNudge)
	assert.False(t, found)
	assert.Equal(t, 2, s.Requests(OpSendNudge))
}
