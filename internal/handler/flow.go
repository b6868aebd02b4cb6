package handler

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/radio-relay/internal/generator"
)

func InstanceIDFromInteraction(i *discordgo.InteractionCreate) string {
	var customID string

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		customID = i.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		customID = i.ModalSubmitData().CustomID
	default:
		return ""
	}

	return InstanceIDFromCustomID(customID)
}

// CustomIDPrefix returns the component name in a "<name>:<instance>" custom ID.
func CustomIDPrefix(customID string) string {
	prefix, _, _ := strings.Cut(customID, ":")
	return prefix
}

func InstanceIDFromCustomID(customID string) string {
	parts := strings.SplitN(customID, ":", 2)
	if len(parts) != 2 {
		return ""
	}

	return parts[1]
}

// DiscordSession is the part of a discordgo session flows respond through.
type DiscordSession interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, opts ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, wh *discordgo.WebhookEdit, opts ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ DiscordSession = (*discordgo.Session)(nil)

type FlowContext struct {
	InstanceID string
	State      map[string]any
}

type Node struct {
	ID      string
	Matcher func(*discordgo.InteractionCreate) bool
	Handler func(DiscordSession, *discordgo.InteractionCreate, *FlowContext) error
	Next    []*Node
}

type Flow struct {
	ID   string
	Root *Node
}

type session struct {
	flow *Flow
	node *Node
	ctx  *FlowContext
}

type FlowManager struct {
	flowsMu *sync.RWMutex
	flows   map[string]*Flow

	sessionsMu *sync.RWMutex
	sessions   map[string]*session

	idGenerator generator.Generator[string]
}

func NewFlowManager(idGenerator generator.Generator[string]) *FlowManager {
	if idGenerator == nil {
		idGenerator = &generator.UUIDV4Generator{}
	}
	return &FlowManager{
		flowsMu:     &sync.RWMutex{},
		flows:       make(map[string]*Flow),
		sessionsMu:  &sync.RWMutex{},
		sessions:    make(map[string]*session),
		idGenerator: idGenerator,
	}
}

func (fm *FlowManager) RegisterFlow(flow *Flow) {
	fm.flowsMu.Lock()
	defer fm.flowsMu.Unlock()

	if _, exists := fm.flows[flow.ID]; exists {
		panic("flow already registered")
	}
	fm.flows[flow.ID] = flow
}

func (fm *FlowManager) Router(s DiscordSession, i *discordgo.InteractionCreate) error {
	instanceID := InstanceIDFromInteraction(i)
	if instanceID != "" {
		fm.sessionsMu.RLock()
		_, inFlow := fm.sessions[instanceID]
		fm.sessionsMu.RUnlock()
		if inFlow {
			return fm.advance(s, i, instanceID)
		}
	}

	return fm.initializeFlow(s, i)
}

// advance moves a flow instance to the first next node matching i. The
// instance is forgotten once it reaches a node with nothing after it.
func (fm *FlowManager) advance(
	s DiscordSession,
	i *discordgo.InteractionCreate,
	instanceID string,
) error {
	fm.sessionsMu.Lock()
	sess, ok := fm.sessions[instanceID]
	if !ok {
		fm.sessionsMu.Unlock()
		return nil
	}

	var nextNode *Node
	for _, n := range sess.node.Next {
		if n.Matcher(i) {
			nextNode = n
			break
		}
	}
	if nextNode == nil {
		fm.sessionsMu.Unlock()
		return nil
	}

	sess.node = nextNode
	if len(nextNode.Next) == 0 {
		delete(fm.sessions, instanceID)
	}
	fm.sessionsMu.Unlock()

	return nextNode.Handler(s, i, sess.ctx)
}

func (fm *FlowManager) initializeFlow(s DiscordSession, i *discordgo.InteractionCreate) error {
	// Find the first matching flow
	var f *Flow
	fm.flowsMu.RLock()
	for _, flow := range fm.flows {
		if flow.Root.Matcher(i) {
			f = flow
			break
		}
	}
	fm.flowsMu.RUnlock()
	if f == nil {
		return nil
	}

	instanceID, err := fm.idGenerator.Next()
	if err != nil {
		return fmt.Errorf("failed to generate instance ID: %w", err)
	}

	ctx := &FlowContext{
		InstanceID: instanceID,
		State:      make(map[string]any),
	}
	newSess := &session{flow: f, node: f.Root, ctx: ctx}

	// Single step flows are done once the root has run.
	pending := len(f.Root.Next) > 0
	if pending {
		fm.sessionsMu.Lock()
		fm.sessions[instanceID] = newSess
		fm.sessionsMu.Unlock()
	}

	if err := f.Root.Handler(s, i, newSess.ctx); err != nil {
		if pending {
			fm.sessionsMu.Lock()
			delete(fm.sessions, instanceID)
			fm.sessionsMu.Unlock()
		}
		return err
	}
	return nil
}

// Active returns the number of flow instances waiting for another interaction.
func (fm *FlowManager) Active() int {
	fm.sessionsMu.RLock()
	defer fm.sessionsMu.RUnlock()
	return len(fm.sessions)
}
