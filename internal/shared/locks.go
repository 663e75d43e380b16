package shared

import "fmt"

// ShopCreditLockKey names the advisory lock that serializes credit checks
// for one shop. Every transaction that reads credit state before writing an
// order must lock this key first.
func ShopCreditLockKey(shopID int64) string {
	return fmt.Sprintf("shop:%d:credit", shopID)
}
