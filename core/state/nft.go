package state

import "errors"

var (
	ErrNotItemOwner    = errors.New("state: not item owner")
	ErrItemNotFound    = errors.New("state: item not found")
	ErrItemNotApproved = errors.New("state: operator not approved for item")
)

// NFTOwner returns the current owner of an item.
func (m *Manager) NFTOwner(collection [20]byte, tokenID uint64) ([20]byte, bool) {
	owner, ok := m.nftOwners[itemKey{Collection: collection, TokenID: tokenID}]
	return owner, ok
}

// SetNFTOwner records the owner of an item.
func (m *Manager) SetNFTOwner(collection [20]byte, tokenID uint64, owner [20]byte) {
	m.nftOwners[itemKey{Collection: collection, TokenID: tokenID}] = owner
}

// SetNFTApproval grants or revokes an operator's transfer approval.
func (m *Manager) SetNFTApproval(collection [20]byte, tokenID uint64, operator [20]byte, approved bool) {
	key := itemKey{Collection: collection, TokenID: tokenID}
	ops, ok := m.nftOps[key]
	if !ok {
		ops = make(map[[20]byte]bool)
		m.nftOps[key] = ops
	}
	ops[operator] = approved
}

// NFTApproved reports whether the operator may move the item.
func (m *Manager) NFTApproved(collection [20]byte, tokenID uint64, operator [20]byte) bool {
	return m.nftOps[itemKey{Collection: collection, TokenID: tokenID}][operator]
}

// NFTBook adapts the manager's ownership book to the vault's non-fungible
// capability.
type NFTBook struct {
	manager *Manager
}

// NewNFTBook creates an NFT registry adapter over the manager.
func NewNFTBook(manager *Manager) *NFTBook {
	return &NFTBook{manager: manager}
}

// OwnerOf returns the current owner of an item.
func (n *NFTBook) OwnerOf(collection [20]byte, tokenID uint64) ([20]byte, error) {
	owner, ok := n.manager.NFTOwner(collection, tokenID)
	if !ok {
		return [20]byte{}, ErrItemNotFound
	}
	return owner, nil
}

// IsApproved reports whether the operator may move the item.
func (n *NFTBook) IsApproved(collection [20]byte, tokenID uint64, operator [20]byte) bool {
	return n.manager.NFTApproved(collection, tokenID, operator)
}

// Transfer moves the item between holders after an ownership check. Approval
// consumption is the caller's concern; the book only verifies the sender.
func (n *NFTBook) Transfer(collection [20]byte, from, to [20]byte, tokenID uint64) error {
	owner, ok := n.manager.NFTOwner(collection, tokenID)
	if !ok {
		return ErrItemNotFound
	}
	if owner != from {
		return ErrNotItemOwner
	}
	n.manager.SetNFTOwner(collection, tokenID, to)
	return nil
}
