package web

import (
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/eto"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/public/logger"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/public/tracer"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/tasks"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreatedByCookie remembers whose task list the visitor is working on.
const CreatedByCookie = "TasksCreatedByCookie"

const dateLayout = "2006-01-02"

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(dateLayout)
	},
}

type signInForm struct {
	TasksCreatedBy string `form:"TasksCreatedBy" binding:"required,email"`
}

type taskForm struct {
	TaskName       string    `form:"TaskName" binding:"required,max=200"`
	TaskDueDate    time.Time `form:"TaskDueDate" time_format:"2006-01-02" time_utc:"1" binding:"required"`
	TaskAssignedTo string    `form:"TaskAssignedTo" binding:"required,email"`
}

func (s *Server) mapRoutes(metrics http.Handler) {
	e := s.engine

	e.GET("/", s.index)
	e.POST("/", s.signIn)
	e.GET("/Privacy", s.privacy)
	e.GET(ErrorPath, s.errorPage)

	t := e.Group("/Tasks")
	t.GET("", s.listTasks)
	t.GET("/Create", s.createForm)
	t.POST("/Create", s.createTask)
	t.GET("/Edit/:id", s.editForm)
	t.POST("/Edit/:id", s.updateTask)
	t.POST("/Delete/:id", s.deleteTask)
	t.POST("/Complete/:id", s.completeTask)
	t.POST("/SignOut", s.signOut)

	e.GET(HealthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		e.GET(MetricsPath, gin.WrapH(metrics))
	}

	e.NoRoute(func(c *gin.Context) {
		s.render(c, http.StatusNotFound, "notfound.tmpl", gin.H{"Title": "Not found"})
	})
}

func createdBy(c *gin.Context) string {
	v, err := c.Cookie(CreatedByCookie)
	if err != nil {
		return ""
	}
	return v
}

// render adds the values every page layout needs.
func (s *Server) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["User"] = createdBy(c)
	data["Environment"] = s.settings.Environment

	_, end := tracer.Start(c.Request.Context(), "render "+name, "template", name)
	defer end()
	c.HTML(status, name, data)
}

func (s *Server) index(c *gin.Context) {
	s.render(c, http.StatusOK, "index.tmpl", gin.H{"Title": "Home", "Email": createdBy(c)})
}

func (s *Server) signIn(c *gin.Context) {
	var form signInForm
	if err := c.ShouldBind(&form); err != nil {
		s.render(c, http.StatusOK, "index.tmpl", gin.H{
			"Title": "Home",
			"Email": c.PostForm("TasksCreatedBy"),
			"Error": "Please enter a valid email address.",
		})
		return
	}

	secure := tracer.Scheme(c.Request) == "https"
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CreatedByCookie, form.TasksCreatedBy, 0, "/", "", secure, true)
	logger.Info(c.Request.Context(), "tasks owner selected", "created_by", form.TasksCreatedBy)
	c.Redirect(http.StatusFound, "/Tasks")
}

func (s *Server) signOut(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CreatedByCookie, "", -1, "/", "", tracer.Scheme(c.Request) == "https", true)
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) privacy(c *gin.Context) {
	s.render(c, http.StatusOK, "privacy.tmpl", gin.H{"Title": "Privacy Policy"})
}

func (s *Server) errorPage(c *gin.Context) {
	id := eto.TraceID(c.Request.Context())
	if id == "" {
		id = requestIDFrom(c)
	}
	s.render(c, http.StatusOK, "error.tmpl", gin.H{
		"Title":           "Error",
		"RequestID":       id,
		"ShowRequestID":   id != "",
		"ShowDevelopment": s.settings.IsDevelopment(),
	})
}

func (s *Server) listTasks(c *gin.Context) {
	owner := createdBy(c)
	list, err := s.tasks.List(c.Request.Context(), owner)
	if err != nil {
		_ = c.Error(err)
		return
	}
	s.render(c, http.StatusOK, "tasks_index.tmpl", gin.H{
		"Title": "Tasks",
		"Tasks": list,
	})
}

func (s *Server) createForm(c *gin.Context) {
	s.render(c, http.StatusOK, "tasks_form.tmpl", gin.H{
		"Title":  "Create Task",
		"Action": "/Tasks/Create",
		"Form":   taskForm{TaskDueDate: time.Now().UTC().AddDate(0, 0, 1)},
	})
}

func (s *Server) createTask(c *gin.Context) {
	var form taskForm
	if err := c.ShouldBind(&form); err != nil {
		s.render(c, http.StatusOK, "tasks_form.tmpl", gin.H{
			"Title":  "Create Task",
			"Action": "/Tasks/Create",
			"Form":   form,
			"Error":  validationMessage(err),
		})
		return
	}

	id, err := s.tasks.Create(c.Request.Context(), tasks.AddTaskRequest{
		TaskName:       form.TaskName,
		TaskCreatedBy:  createdBy(c),
		TaskDueDate:    form.TaskDueDate,
		TaskAssignedTo: form.TaskAssignedTo,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	logger.Info(c.Request.Context(), "task created", "task_id", id.String(), "created_by", createdBy(c))
	c.Redirect(http.StatusFound, "/Tasks")
}

func (s *Server) editForm(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		s.notFound(c)
		return
	}
	task, err := s.tasks.Get(c.Request.Context(), id)
	if errors.Is(err, tasks.ErrNotFound) {
		s.notFound(c)
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	s.render(c, http.StatusOK, "tasks_form.tmpl", gin.H{
		"Title":  "Edit Task",
		"Action": "/Tasks/Edit/" + id.String(),
		"Form": taskForm{
			TaskName:       task.TaskName,
			TaskDueDate:    task.TaskDueDate,
			TaskAssignedTo: task.TaskAssignedTo,
		},
	})
}

func (s *Server) updateTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		s.notFound(c)
		return
	}
	var form taskForm
	if err := c.ShouldBind(&form); err != nil {
		s.render(c, http.StatusOK, "tasks_form.tmpl", gin.H{
			"Title":  "Edit Task",
			"Action": "/Tasks/Edit/" + id.String(),
			"Form":   form,
			"Error":  validationMessage(err),
		})
		return
	}

	err := s.tasks.Update(c.Request.Context(), tasks.UpdateTaskRequest{
		TaskID:         id,
		TaskName:       form.TaskName,
		TaskDueDate:    form.TaskDueDate,
		TaskAssignedTo: form.TaskAssignedTo,
	})
	s.afterMutation(c, err)
}

func (s *Server) deleteTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		s.notFound(c)
		return
	}
	s.afterMutation(c, s.tasks.Delete(c.Request.Context(), id))
}

func (s *Server) completeTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		s.notFound(c)
		return
	}
	s.afterMutation(c, s.tasks.MarkComplete(c.Request.Context(), id))
}

func (s *Server) afterMutation(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		s.notFound(c)
	case err != nil:
		_ = c.Error(err)
	default:
		c.Redirect(http.StatusFound, "/Tasks")
	}
}

func (s *Server) notFound(c *gin.Context) {
	s.render(c, http.StatusNotFound, "notfound.tmpl", gin.H{"Title": "Not found"})
}

func taskID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	return id, err == nil
}

func validationMessage(err error) string {
	if err == nil {
		return ""
	}
	return "Please check the task fields: name, a valid due date and an assignee email are required."
}
