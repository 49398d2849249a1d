package i18n

// ZhCNMessages 简体中文消息目录
// ZhCNMessages Simplified Chinese message catalog
var ZhCNMessages = map[string]string{
	// 看板
	"app.title":   "看板",
	"lane.todo":   "待处理",
	"lane.doing":  "进行中",
	"lane.done":   "已完成",
	"lane.empty":  "暂无卡片",
	"card.add":    "添加卡片",
	"card.moving": "移动中",

	// 状态栏
	"status.server":    "服务",
	"status.loading":   "正在加载任务...",
	"status.ready":     "就绪",
	"status.syncing":   "正在同步 %d 项修改...",
	"status.dragging":  "移动「%s」：←↑↓→ 选择位置，回车放下，esc 取消",
	"status.cancelled": "已取消移动",
	"status.dropped":   "已移到 %s",
	"status.created":   "已添加卡片",
	"status.deleted":   "已删除卡片",
	"status.updated":   "已更新卡片",

	// 输入提示
	"prompt.new_title":      "为这张卡片输入标题...",
	"prompt.edit_title":     "编辑标题",
	"prompt.edit_content":   "编辑描述",
	"prompt.confirm_delete": "确定删除「%s」吗?(y/n)",

	// 失败提示
	"error.load":        "加载任务失败：%s",
	"error.create":      "创建失败：%s",
	"error.update":      "更新失败：%s",
	"error.move":        "移动失败：%s",
	"error.delete":      "删除失败：%s",
	"error.empty_title": "标题不能为空",
	"error.no_task":     "未选中卡片",

	// 详情
	"detail.status":     "状态",
	"detail.position":   "位置",
	"detail.no_content": "_暂无描述。_",

	// 帮助
	"help.board": "←→ 泳道  ↑↓ 卡片  n 新建  e 编辑  d 删除  空格 移动  回车 详情  r 刷新  q 退出",
	"help.drag":  "←→ 泳道  ↑↓ 位置  回车 放下  esc 取消",

	// 命令行
	"shell.welcome": "kanban 命令行，服务 %s。输入 help 查看命令。",
	"shell.help": `命令：
  ls [泳道]                  列出卡片
  add <标题> [@泳道]         新建卡片
  mv <id> <泳道|id>          把卡片移到泳道或另一张卡片处
  edit <id> <标题>           修改标题
  desc <id> <文本>           修改描述
  show <id>                  查看卡片
  rm <id>                    删除卡片
  reload                     从服务重新加载
  lang <en|zh-CN>            切换语言
  help                       显示本帮助
  exit                       退出`,
	"shell.unknown":  "未知命令：%s",
	"shell.usage":    "用法：%s",
	"shell.no_task":  "没有卡片 %s",
	"shell.bad_lane": "没有泳道或卡片 %s",
	"shell.created":  "已创建 %s",
	"shell.moved":    "已把 %s 移到 %s",
	"shell.updated":  "已更新 %s",
	"shell.deleted":  "已删除 %s",
	"shell.loaded":   "已加载 %d 张卡片",
	"shell.lang":     "语言：%s",
	"shell.bye":      "再见",
}
