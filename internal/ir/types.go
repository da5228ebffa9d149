package ir

// PropertyKind is the tagged capability of a container property.
type PropertyKind string

const (
	// KindValue marks a replicated scalar (NetworkValue).
	KindValue PropertyKind = "value"
	// KindCollection marks a replicated ordered sequence (NetworkCollection).
	KindCollection PropertyKind = "collection"
)

// ValidKinds defines the allowed property kinds.
var ValidKinds = map[PropertyKind]bool{
	KindValue:      true,
	KindCollection: true,
}

// ContainerSchema is the static, ordered property table of one container type.
// Declaration order is snapshot order.
type ContainerSchema struct {
	Type       string           `json:"type"`
	Properties []PropertySchema `json:"properties"`
}

// PropertySchema describes one named property of a container.
type PropertySchema struct {
	Name    string       `json:"name"`
	Kind    PropertyKind `json:"kind"`
	Element string       `json:"element"` // element-type id, e.g. "string", "instance"
}

// Property returns the schema entry for name.
func (s *ContainerSchema) Property(name string) (PropertySchema, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertySchema{}, false
}

// ModuleType distinguishes always-on system modules from user-opened protocols.
type ModuleType string

const (
	ModuleSystem   ModuleType = "system"
	ModuleProtocol ModuleType = "protocol"
)

// ModuleData describes a loadable module as replicated to participants.
type ModuleData struct {
	Module        string     `json:"module"`
	ModuleType    ModuleType `json:"module_type"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	ShowOnClient  bool       `json:"show_on_client"`
	CanClientOpen bool       `json:"can_client_open"`
	NotifyOnOpen  bool       `json:"notify_on_open"`
}

// InstanceData describes one open module instance as replicated to participants.
type InstanceData struct {
	Module         string `json:"module"`
	InstanceID     string `json:"instance_id"`
	Title          string `json:"title"`
	CanClientClose bool   `json:"can_client_close"`
}
