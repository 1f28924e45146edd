package entity

type ToolName string

const (
	ToolBrowserNavigate   ToolName = "navigate"
	ToolBrowserObserve    ToolName = "observe"
	ToolBrowserAct        ToolName = "act"
	ToolBrowserPerform    ToolName = "perform"
	ToolBrowserTree       ToolName = "get_tree"
	ToolBrowserExtract    ToolName = "extract"
	ToolBrowserScroll     ToolName = "scroll"
	ToolBrowserScreenshot ToolName = "screenshot"
)

func (t ToolName) String() string {
	return string(t)
}
