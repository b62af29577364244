package cart

import "github.com/theauditor/loremshelf/domain"

type ActionType string

const (
	ActionAddItem        ActionType = "ADD_ITEM"
	ActionRemoveItem     ActionType = "REMOVE_ITEM"
	ActionUpdateQuantity ActionType = "UPDATE_QUANTITY"
	ActionClearCart      ActionType = "CLEAR_CART"
	ActionLoadCart       ActionType = "LOAD_CART"
)

type Action struct {
	Type     ActionType
	Item     domain.CartLine   // ADD_ITEM
	ID       string            // REMOVE_ITEM, UPDATE_QUANTITY
	Quantity int               // UPDATE_QUANTITY
	Items    []domain.CartLine // LOAD_CART
}

func AddItem(item domain.CartLine) Action {
	return Action{Type: ActionAddItem, Item: item}
}

func RemoveItem(id string) Action {
	return Action{Type: ActionRemoveItem, ID: id}
}

func UpdateQuantity(id string, quantity int) Action {
	return Action{Type: ActionUpdateQuantity, ID: id, Quantity: quantity}
}

func ClearCart() Action {
	return Action{Type: ActionClearCart}
}

func LoadCart(items []domain.CartLine) Action {
	return Action{Type: ActionLoadCart, Items: items}
}

// Reduce returns the next cart state. The input state is never modified.
func Reduce(state domain.CartState, action Action) domain.CartState {
	var items []domain.CartLine

	switch action.Type {
	case ActionAddItem:
		items = cloneItems(state.Items)
		found := false
		for i := range items {
			if items[i].ID == action.Item.ID {
				// attributes of the incoming line are ignored for an existing id
				items[i].Quantity++
				found = true
				break
			}
		}
		if !found {
			line := action.Item
			line.Quantity = 1
			items = append(items, line)
		}

	case ActionRemoveItem:
		items = make([]domain.CartLine, 0, len(state.Items))
		for _, item := range state.Items {
			if item.ID != action.ID {
				items = append(items, item)
			}
		}

	case ActionUpdateQuantity:
		if action.Quantity <= 0 {
			return Reduce(state, RemoveItem(action.ID))
		}
		items = cloneItems(state.Items)
		for i := range items {
			if items[i].ID == action.ID {
				items[i].Quantity = action.Quantity
			}
		}

	case ActionClearCart:
		items = []domain.CartLine{}

	case ActionLoadCart:
		items = make([]domain.CartLine, 0, len(action.Items))
		for _, item := range action.Items {
			if item.Quantity > 0 {
				items = append(items, item)
			}
		}

	default:
		return state
	}

	next := domain.CartState{Items: items}
	next.Total = next.ComputeTotal()
	return next
}

func cloneItems(items []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, len(items), len(items)+1)
	copy(out, items)
	return out
}
