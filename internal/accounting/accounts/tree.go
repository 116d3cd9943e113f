package accounts

import "sort"

// Node is an account with its children attached.
type Node struct {
	Account  Account `json:"account"`
	Children []*Node `json:"children,omitempty"`
}

// BuildTree arranges accounts by parent code. Accounts whose parent is unset
// or unknown become roots; siblings are ordered by code.
func BuildTree(accounts []Account) []*Node {
	byCode := make(map[string]*Node, len(accounts))
	for _, acc := range accounts {
		byCode[acc.Code] = &Node{Account: acc}
	}
	var roots []*Node
	for _, acc := range accounts {
		node := byCode[acc.Code]
		if acc.IsRoot() {
			roots = append(roots, node)
			continue
		}
		parent, ok := byCode[*acc.ParentCode]
		if !ok || parent == node {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	sortNodes(roots)
	return roots
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Account.Code < nodes[j].Account.Code })
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}

func sortByCode(accounts []Account) {
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
}
