package events

import "time"

// TransactionEvent mirrors one committed log record for live observers.
type TransactionEvent struct {
	Type      string    `json:"type"`
	AccountID int32     `json:"account_id"`
	Amount    int64     `json:"amount,omitempty"`
	Balance   int64     `json:"balance"`
	Timestamp time.Time `json:"timestamp"`
}

// Broker manages subscriber channels and broadcasts committed transaction
// events to the admin SSE stream. Publishing never blocks the serving path:
// events to slow or absent subscribers are dropped.
type Broker struct {
	clients       map[chan TransactionEvent]bool
	newClients    chan chan TransactionEvent
	closedClients chan chan TransactionEvent
	events        chan TransactionEvent
}

// NewBroker creates and starts a new Broker.
func NewBroker() *Broker {
	b := &Broker{
		clients:       make(map[chan TransactionEvent]bool),
		newClients:    make(chan chan TransactionEvent),
		closedClients: make(chan chan TransactionEvent),
		events:        make(chan TransactionEvent, 64),
	}

	go b.start()
	return b
}

func (b *Broker) start() {
	for {
		select {
		case client := <-b.newClients:
			b.clients[client] = true
		case client := <-b.closedClients:
			delete(b.clients, client)
			close(client)
		case event := <-b.events:
			for client := range b.clients {
				select {
				case client <- event:
				default:
				}
			}
		}
	}
}

// Subscribe registers a new listener and returns its channel.
func (b *Broker) Subscribe() chan TransactionEvent {
	ch := make(chan TransactionEvent, 16)
	b.newClients <- ch
	return ch
}

// Unsubscribe removes a listener.
func (b *Broker) Unsubscribe(ch chan TransactionEvent) {
	b.closedClients <- ch
}

// Publish sends the given event to all connected clients, dropping it when
// the broker is saturated.
func (b *Broker) Publish(event TransactionEvent) {
	select {
	case b.events <- event:
	default:
	}
}
