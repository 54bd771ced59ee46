package cod

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func configWithValue(value string) config.CODConfig {
	return config.CODConfig{
		MaxActiveOrders:    3,
		MaxOrderValue:      value,
		MaxCancellations:   2,
		ActiveTTL:          168 * time.Hour,
		CancellationWindow: 720 * time.Hour,
	}
}
