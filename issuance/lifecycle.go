package issuance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/benefit-engine/benefits"
	"github.com/warp/benefit-engine/events"
)

// Lifecycle moves issued vouchers to their terminal states.
type Lifecycle struct {
	Vouchers benefits.VoucherStore
	Bus      *events.Bus
	Now      func() time.Time
	Logger   zerolog.Logger
}

func (l *Lifecycle) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

// Redeem marks the voucher with code as used. Only issued, unexpired
// vouchers can be redeemed, and only once.
func (l *Lifecycle) Redeem(ctx context.Context, code, redeemedBy string) (*benefits.Voucher, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := benefits.ValidateCode(code); err != nil {
		return nil, err
	}

	v, err := l.Vouchers.RedeemVoucher(ctx, code, l.now())
	if err != nil {
		return nil, err
	}

	l.Logger.Info().Str("code", v.Code).Str("redeemed_by", redeemedBy).Msg("voucher redeemed")
	l.Bus.Publish(ctx, VoucherRedeemed{Voucher: *v, RedeemedBy: redeemedBy})
	return v, nil
}

// Expire marks every issued voucher past its expiry as expired.
func (l *Lifecycle) Expire(ctx context.Context) (int, error) {
	asOf := l.now()
	n, err := l.Vouchers.ExpireVouchers(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("expire vouchers: %w", err)
	}
	if n > 0 {
		l.Logger.Info().Int("count", n).Time("as_of", asOf).Msg("vouchers expired")
		l.Bus.Publish(ctx, VouchersExpired{Count: n, AsOf: asOf})
	}
	return n, nil
}
