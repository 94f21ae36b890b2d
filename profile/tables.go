package profile

// SamplesTable holds the timestamped stack samples of a thread.
// A nil Weight column weighs every sample as 1.
type SamplesTable struct {
	Stack      []int     `json:"stack"`
	Time       []Time    `json:"time"`
	Weight     []float64 `json:"weight"`
	WeightType string    `json:"weightType,omitempty"`
	Length     int       `json:"length"`
}

func (t *SamplesTable) WeightAt(i int) float64 {
	if t.Weight == nil {
		return 1
	}
	return t.Weight[i]
}

type StackTable struct {
	Frame  []int `json:"frame"`
	Prefix []int `json:"prefix"`
	Length int   `json:"length"`
}

func (t *StackTable) Append(frame, prefix int) int {
	t.Frame = append(t.Frame, frame)
	t.Prefix = append(t.Prefix, prefix)
	t.Length++
	return t.Length - 1
}

type Frame struct {
	Address       int64
	InlineDepth   int
	Category      int
	Subcategory   int
	Func          int
	NativeSymbol  int
	InnerWindowID int
	Line          int
	Column        int
}

type FrameTable struct {
	Address       []int64 `json:"address"`
	InlineDepth   []int   `json:"inlineDepth"`
	Category      []int   `json:"category"`
	Subcategory   []int   `json:"subcategory"`
	Func          []int   `json:"func"`
	NativeSymbol  []int   `json:"nativeSymbol"`
	InnerWindowID []int   `json:"innerWindowID"`
	Line          []int   `json:"line"`
	Column        []int   `json:"column"`
	Length        int     `json:"length"`
}

func (t *FrameTable) Row(i int) Frame {
	return Frame{
		Address:       t.Address[i],
		InlineDepth:   t.InlineDepth[i],
		Category:      t.Category[i],
		Subcategory:   t.Subcategory[i],
		Func:          t.Func[i],
		NativeSymbol:  t.NativeSymbol[i],
		InnerWindowID: t.InnerWindowID[i],
		Line:          t.Line[i],
		Column:        t.Column[i],
	}
}

func (t *FrameTable) Append(f Frame) int {
	t.Address = append(t.Address, f.Address)
	t.InlineDepth = append(t.InlineDepth, f.InlineDepth)
	t.Category = append(t.Category, f.Category)
	t.Subcategory = append(t.Subcategory, f.Subcategory)
	t.Func = append(t.Func, f.Func)
	t.NativeSymbol = append(t.NativeSymbol, f.NativeSymbol)
	t.InnerWindowID = append(t.InnerWindowID, f.InnerWindowID)
	t.Line = append(t.Line, f.Line)
	t.Column = append(t.Column, f.Column)
	t.Length++
	return t.Length - 1
}

type Func struct {
	Name          StringIndex
	IsJS          bool
	RelevantForJS bool
	Resource      int
	FileName      StringIndex
	LineNumber    int
	ColumnNumber  int
}

type FuncTable struct {
	Name          []StringIndex `json:"name"`
	IsJS          []bool        `json:"isJS"`
	RelevantForJS []bool        `json:"relevantForJS"`
	Resource      []int         `json:"resource"`
	FileName      []StringIndex `json:"fileName"`
	LineNumber    []int         `json:"lineNumber"`
	ColumnNumber  []int         `json:"columnNumber"`
	Length        int           `json:"length"`
}

func (t *FuncTable) Row(i int) Func {
	return Func{
		Name:          t.Name[i],
		IsJS:          t.IsJS[i],
		RelevantForJS: t.RelevantForJS[i],
		Resource:      t.Resource[i],
		FileName:      t.FileName[i],
		LineNumber:    t.LineNumber[i],
		ColumnNumber:  t.ColumnNumber[i],
	}
}

func (t *FuncTable) Append(f Func) int {
	t.Name = append(t.Name, f.Name)
	t.IsJS = append(t.IsJS, f.IsJS)
	t.RelevantForJS = append(t.RelevantForJS, f.RelevantForJS)
	t.Resource = append(t.Resource, f.Resource)
	t.FileName = append(t.FileName, f.FileName)
	t.LineNumber = append(t.LineNumber, f.LineNumber)
	t.ColumnNumber = append(t.ColumnNumber, f.ColumnNumber)
	t.Length++
	return t.Length - 1
}

type ResourceType int

const (
	ResourceUnknown   = ResourceType(0)
	ResourceLibrary   = ResourceType(1)
	ResourceAddon     = ResourceType(2)
	ResourceWebhost   = ResourceType(3)
	ResourceOtherhost = ResourceType(4)
	ResourceURL       = ResourceType(5)
)

type Resource struct {
	Lib  int
	Name StringIndex
	Host StringIndex
	Type ResourceType
}

type ResourceTable struct {
	Lib    []int          `json:"lib"`
	Name   []StringIndex  `json:"name"`
	Host   []StringIndex  `json:"host"`
	Type   []ResourceType `json:"type"`
	Length int            `json:"length"`
}

func (t *ResourceTable) Row(i int) Resource {
	return Resource{
		Lib:  t.Lib[i],
		Name: t.Name[i],
		Host: t.Host[i],
		Type: t.Type[i],
	}
}

func (t *ResourceTable) Append(r Resource) int {
	t.Lib = append(t.Lib, r.Lib)
	t.Name = append(t.Name, r.Name)
	t.Host = append(t.Host, r.Host)
	t.Type = append(t.Type, r.Type)
	t.Length++
	return t.Length - 1
}

type NativeSymbol struct {
	LibIndex     int
	Address      int64
	Name         StringIndex
	FunctionSize int
}

type NativeSymbolTable struct {
	LibIndex     []int         `json:"libIndex"`
	Address      []int64       `json:"address"`
	Name         []StringIndex `json:"name"`
	FunctionSize []int         `json:"functionSize"`
	Length       int           `json:"length"`
}

func (t *NativeSymbolTable) Row(i int) NativeSymbol {
	return NativeSymbol{
		LibIndex:     t.LibIndex[i],
		Address:      t.Address[i],
		Name:         t.Name[i],
		FunctionSize: t.FunctionSize[i],
	}
}

func (t *NativeSymbolTable) Append(s NativeSymbol) int {
	t.LibIndex = append(t.LibIndex, s.LibIndex)
	t.Address = append(t.Address, s.Address)
	t.Name = append(t.Name, s.Name)
	t.FunctionSize = append(t.FunctionSize, s.FunctionSize)
	t.Length++
	return t.Length - 1
}
