package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/millisami/flow-name-service/internal/capability"
	"github.com/millisami/flow-name-service/pkg/domain"
	dErrors "github.com/millisami/flow-name-service/pkg/domain-errors"
	"github.com/millisami/flow-name-service/pkg/platform/sentinel"
)

func TestDepositMovesWholeBalance(t *testing.T) {
	escrow := New(0)
	payment := New(domain.MustParseAmount("31536.0"))

	escrow.Deposit(payment)

	assert.Equal(t, domain.MustParseAmount("31536.0"), escrow.Balance())
	assert.Equal(t, domain.Amount(0), payment.Balance(), "paying vault is emptied")
}

func TestWithdraw(t *testing.T) {
	v := New(domain.MustParseAmount("100.0"))

	taken, err := v.Withdraw(domain.MustParseAmount("40.0"))
	require.NoError(t, err)
	assert.Equal(t, domain.MustParseAmount("40.0"), taken.Balance())
	assert.Equal(t, domain.MustParseAmount("60.0"), v.Balance())
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	v := New(domain.MustParseAmount("1.0"))

	_, err := v.Withdraw(domain.MustParseAmount("1.00000001"))
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrInsufficientFunds)
	assert.True(t, dErrors.HasCode(err, dErrors.CodePayment))
	assert.Equal(t, domain.MustParseAmount("1.0"), v.Balance(), "failed withdrawal must not move funds")
}

func TestReceiverFromRequiresDepositGrant(t *testing.T) {
	owner := domain.NewAddress()
	issuer := capability.NewIssuer(owner)
	target := New(0)

	ref := issuer.Publish("/public/fundsReceiver", target, OpDeposit)
	recv, err := ReceiverFrom(ref)
	require.NoError(t, err)

	recv.Deposit(New(domain.MustParseAmount("5.0")))
	assert.Equal(t, domain.MustParseAmount("5.0"), target.Balance())

	bare := issuer.Publish("/public/other", target)
	_, err = ReceiverFrom(bare)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDelegation))
}

func TestReceiverFromRejectsWrongTarget(t *testing.T) {
	issuer := capability.NewIssuer(domain.NewAddress())
	ref := issuer.Publish("/public/fundsReceiver", "not a vault", OpDeposit)

	_, err := ReceiverFrom(ref)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDelegation))
}
