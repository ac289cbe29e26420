package checkout

import (
	"errors"
	"testing"

	"github.com/kiendrone/storefront/internal/domain/cart"
	"github.com/kiendrone/storefront/internal/domain/shared"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(id string, price int64, qty int) cart.CartLine {
	return cart.CartLine{
		ProductID: id,
		Name:      "Item " + id,
		UnitPrice: valueobject.VNDFromInt(price),
		Quantity:  qty,
		Condition: cart.ConditionNew,
	}
}

func validForm() CustomerForm {
	return CustomerForm{
		FullName: "Trần Thị Bình",
		Phone:    "0912345678",
		Email:    "binh@example.vn",
		Address:  "45 Nguyễn Huệ, TP.HCM",
	}
}

func TestCompose_Pricing(t *testing.T) {
	tests := []struct {
		name         string
		lines        []cart.CartLine
		wantSubtotal int64
		wantShipping int64
		wantTotal    int64
	}{
		{
			name:         "flat fee below threshold",
			lines:        []cart.CartLine{line("A", 500000, 2), line("B", 300000, 1)},
			wantSubtotal: 1300000,
			wantShipping: 50000,
			wantTotal:    1350000,
		},
		{
			name:         "free shipping above threshold",
			lines:        []cart.CartLine{line("M", 12000000, 1)},
			wantSubtotal: 12000000,
			wantShipping: 0,
			wantTotal:    12000000,
		},
		{
			name:         "exactly at threshold still pays shipping",
			lines:        []cart.CartLine{line("M", 5000000, 2)},
			wantSubtotal: 10000000,
			wantShipping: 50000,
			wantTotal:    10050000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft, err := Compose(tt.lines, validForm(), "cod")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubtotal, draft.Subtotal.IntPart())
			assert.Equal(t, tt.wantShipping, draft.ShippingFee.IntPart())
			assert.Equal(t, tt.wantTotal, draft.Total.IntPart())
		})
	}
}

func TestCompose_EmptyCart(t *testing.T) {
	_, err := Compose(nil, validForm(), "cod")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyCart))
}

func TestCompose_Validation(t *testing.T) {
	tests := []struct {
		name  string
		form  func(f *CustomerForm)
		field string
	}{
		{"missing name", func(f *CustomerForm) { f.FullName = "   " }, "full_name"},
		{"missing address", func(f *CustomerForm) { f.Address = "" }, "address"},
		{"missing phone", func(f *CustomerForm) { f.Phone = "" }, "phone"},
		{"phone with letters", func(f *CustomerForm) { f.Phone = "09123abc" }, "phone"},
		{"phone with separators", func(f *CustomerForm) { f.Phone = "0912-345-678" }, "phone"},
		{"malformed email", func(f *CustomerForm) { f.Email = "binh@" }, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.form(&f)
			_, err := Compose([]cart.CartLine{line("A", 1, 1)}, f, "cod")
			require.Error(t, err)

			var derr *shared.DomainError
			require.True(t, errors.As(err, &derr))
			assert.Equal(t, "VALIDATION_ERROR", derr.Code)
			assert.Contains(t, derr.Details, tt.field)
		})
	}

	t.Run("collects every problem", func(t *testing.T) {
		_, err := Compose([]cart.CartLine{line("A", 1, 1)}, CustomerForm{Phone: "x"}, "cheque")
		var derr *shared.DomainError
		require.True(t, errors.As(err, &derr))
		assert.Len(t, derr.Details, 4)
	})

	t.Run("email is optional", func(t *testing.T) {
		f := validForm()
		f.Email = ""
		_, err := Compose([]cart.CartLine{line("A", 1, 1)}, f, "cod")
		assert.NoError(t, err)
	})
}

func TestCompose_PaymentMethod(t *testing.T) {
	tests := []struct {
		raw  string
		want PaymentMethod
	}{
		{"", PaymentCOD},
		{"COD", PaymentCOD},
		{"bank", PaymentBank},
		{" Transfer ", PaymentBank},
		{"momo", PaymentEWallet},
		{"ewallet", PaymentEWallet},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			draft, err := Compose([]cart.CartLine{line("A", 1, 1)}, validForm(), tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, draft.PaymentMethod)
		})
	}

	assert.True(t, PaymentBank.RequiresPrepayment())
	assert.True(t, PaymentEWallet.RequiresPrepayment())
	assert.False(t, PaymentCOD.RequiresPrepayment())
}

func TestCompose_IsPure(t *testing.T) {
	lines := []cart.CartLine{line("A", 500000, 2)}
	first, err := Compose(lines, validForm(), "bank")
	require.NoError(t, err)
	second, err := Compose(lines, validForm(), "bank")
	require.NoError(t, err)

	assert.True(t, first.Total.Equals(second.Total))

	first.Lines[0].Quantity = 9
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestCompose_CustomPolicy(t *testing.T) {
	c := NewComposer(ShippingPolicy{
		FreeAbove: valueobject.VNDFromInt(1000),
		FlatFee:   valueobject.VNDFromInt(30),
	})
	draft, err := c.Compose([]cart.CartLine{line("A", 100, 1)}, validForm(), "cod")
	require.NoError(t, err)
	assert.Equal(t, int64(130), draft.Total.IntPart())
}
