package domain

const (
	TxTypeDeposit  = "deposit"
	TxTypeTransfer = "transfer"
	TxTypeExchange = "exchange"
)
