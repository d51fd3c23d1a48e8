package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wse/elogist-sync/internal/integrations/elogist"
	"github.com/wse/elogist-sync/internal/models"
)

func TestFakeClient_DeliveryOrderFlow(t *testing.T) {
	c := New()
	ctx := context.Background()

	carriers, err := c.CarrierListGet(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, carriers)

	st, err := c.DeliveryOrder(ctx, &elogist.DeliveryOrderRequest{OrderID: "42"})
	require.NoError(t, err)
	require.Equal(t, "EL-42", st.SysOrderID)
	require.Equal(t, models.ElogistStatusNew, st.Status)

	st1, err := c.DeliveryOrderStatusGet(ctx, "42")
	require.NoError(t, err)
	st2, err := c.DeliveryOrderStatusGet(ctx, "42")
	require.NoError(t, err)
	require.Equal(t, st1.Status, st2.Status)
	require.NotEmpty(t, st1.TrackingNo)
}
