// Package reconcile runs physical stock counts and their approval.
//
// A session snapshots the expected balance of each item at a location,
// collects counted quantities, and is submitted for review. The variance
// report compares counted against expected; its digest binds an approval
// to the exact report the manager saw. Approval appends one Adjustment
// movement per non-zero variance in the same transaction as the status
// change, so an approved count is always fully applied or not at all.
//
// State machine:
//
//	open ──submit──▶ pending ──approve──▶ approved
//	  │                 └─────reject───▶ rejected
//	  └──cancel──▶ cancelled
package reconcile
