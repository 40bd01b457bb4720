package bridge

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const lockABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "uint256", "name": "toChainId", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "token", "type": "address"}
    ],
    "name": "TokensLocked",
    "type": "event"
  }
]`

var (
	lockABI     abi.ABI
	lockABIOnce sync.Once
	lockABIErr  error
)

// LockABI returns the parsed bridge contract ABI fragment.
func LockABI() (abi.ABI, error) {
	lockABIOnce.Do(func() {
		lockABI, lockABIErr = abi.JSON(strings.NewReader(lockABIJSON))
	})
	return lockABI, lockABIErr
}
