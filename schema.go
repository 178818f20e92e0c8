package opts

// FieldDescriptor describes one accepted keyword of a backend.
type FieldDescriptor struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	Group   Group  `json:"group"`
	Keyword string `json:"keyword"`
}

// DefaultSchemaGenerator returns the built-in descriptor-based schema generator.
func DefaultSchemaGenerator() SchemaGenerator {
	return descriptorGenerator{}
}

type descriptorGenerator struct{}

// Generate lists Type.group.keyword descriptors in type, group and keyword
// order.
func (descriptorGenerator) Generate(backend string, table OptionTable) (SchemaDocument, error) {
	descriptors := []FieldDescriptor{}
	for _, typ := range table.Types() {
		for _, group := range sortedGroups {
			for _, keyword := range table[typ][group].Sorted() {
				descriptors = append(descriptors, FieldDescriptor{
					Path:    typ + "." + group.String() + "." + keyword,
					Type:    typ,
					Group:   group,
					Keyword: keyword,
				})
			}
		}
	}
	return SchemaDocument{
		Format:   SchemaFormatDescriptors,
		Backend:  backend,
		Document: descriptors,
	}, nil
}
