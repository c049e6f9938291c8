package dex

import "github.com/ethereum/go-ethereum/common"

// Event topics, keccak256 of the canonical event signature.
const (
	syncTopic        = "0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50e062b03a9fffbbad1" // Sync(uint112,uint112)
	pairCreatedTopic = "0x0d3648bd0f6ba80134a33ba9275ac585d9d315f0ad8355cddefde31afa28d0e9" // PairCreated(address,address,address,uint256)
	depositTopic     = "0xdcbc1c05240f31ff3ad067ef1ee35ce4997762752e3a095284754544f4c709d7" // Deposit(address,address,uint256,uint256)
	withdrawTopic    = "0xfbde797d201c681b91056529119e0b02407c7bb96a4a2c75c01fc9667232c8db" // Withdraw(address,address,address,uint256,uint256)
)

var (
	SyncEventSignature        = common.HexToHash(syncTopic)
	PairCreatedEventSignature = common.HexToHash(pairCreatedTopic)
	DepositEventSignature     = common.HexToHash(depositTopic)
	WithdrawEventSignature    = common.HexToHash(withdrawTopic)
)
