package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	"papertrail/docstore/services"

	"github.com/go-chi/chi/v5"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
	login    *loginInfo
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
		headers:  nil,
		json:     nil,
		body:     nil,
	}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Login(email, password string) *httpTestRequest {
	r.login = &loginInfo{Email: email, Password: password}
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

func (r *httpTestRequest) Body(body io.Reader) *httpTestRequest {
	r.body = body
	return r
}

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.headers != nil {
		for k, v := range r.headers {
			req.Header.Add(k, v)
		}
	}

	if r.login != nil {
		req.SetBasicAuth(r.login.Email, r.login.Password)
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			return ErrUnauthorized
		}
		return fmt.Errorf("%v request to endpoint %v returned status %d, content '%v'", r.method, r.endpoint, res.StatusCode, w.Body.String())
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

var ErrUnauthorized = errors.New("unauthorized")

type client struct {
	api       chi.Router
	authToken string
	userId    string
}

func (c *client) Get(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "GET", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Post(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "POST", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "DELETE", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

type loginInfo struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *client) signup(username, email, password string) (loginInfo, error) {
	body := map[string]string{
		"email": email, "username": username, "password": password,
	}

	err := c.Post("/user/signup").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) login(login loginInfo) error {
	var res map[string]string
	err := c.Get("/user/login").Login(login.Email, login.Password).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = res["user_id"]

	return nil
}

func (c *client) addUser(username, email, password string) (loginInfo, error) {
	body := map[string]string{
		"email": email, "username": username, "password": password,
	}

	err := c.Post("/user/create").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) deleteUser(userId string) error {
	return c.Delete(fmt.Sprintf("/user/%v", userId)).Do(nil)
}

func (c *client) promoteAdmin(userId string) error {
	return c.Post(fmt.Sprintf("/user/%v/admin", userId)).Do(nil)
}

func (c *client) demoteAdmin(userId string) error {
	return c.Delete(fmt.Sprintf("/user/%v/admin", userId)).Do(nil)
}

func (c *client) listUsers() ([]services.UserInfo, error) {
	var res []services.UserInfo
	err := c.Get("/user/list").Do(&res)
	return res, err
}

func (c *client) userInfo() (services.UserInfo, error) {
	var res services.UserInfo
	err := c.Get("/user/info").Do(&res)
	return res, err
}

func (c *client) createOrganization(name string) (string, error) {
	body := map[string]string{"name": name}

	var res map[string]string
	err := c.Post("/organization/create").Json(body).Do(&res)
	return res["organization_id"], err
}

func (c *client) deleteOrganization(organizationId string) error {
	return c.Delete(fmt.Sprintf("/organization/%v", organizationId)).Do(nil)
}

func (c *client) addUserToOrganization(organizationId, userId string) error {
	return c.Post(fmt.Sprintf("/organization/%v/users/%v", organizationId, userId)).Do(nil)
}

func (c *client) createTeam(name, organizationId string) (string, error) {
	body := map[string]string{"name": name, "organization_id": organizationId}

	var res map[string]string
	err := c.Post("/team/create").Json(body).Do(&res)
	return res["team_id"], err
}

func (c *client) deleteTeam(teamId string) error {
	return c.Delete(fmt.Sprintf("/team/%v", teamId)).Do(nil)
}

func (c *client) addUserToTeam(teamId, userId string) error {
	return c.Post(fmt.Sprintf("/team/%v/users/%v", teamId, userId)).Do(nil)
}

func (c *client) removeUserFromTeam(teamId, userId string) error {
	return c.Delete(fmt.Sprintf("/team/%v/users/%v", teamId, userId)).Do(nil)
}

func (c *client) addTeamLead(teamId, userId string) error {
	return c.Post(fmt.Sprintf("/team/%v/leads/%v", teamId, userId)).Do(nil)
}

func (c *client) removeTeamLead(teamId, userId string) error {
	return c.Delete(fmt.Sprintf("/team/%v/leads/%v", teamId, userId)).Do(nil)
}

func (c *client) listTeams() ([]services.TeamInfo, error) {
	var res []services.TeamInfo
	err := c.Get("/team/list").Do(&res)
	return res, err
}

func (c *client) listTeamUsers(teamId string) ([]services.TeamUserInfo, error) {
	var res []services.TeamUserInfo
	err := c.Get(fmt.Sprintf("/team/%v/users", teamId)).Do(&res)
	return res, err
}

func (c *client) listTeamFolders(teamId string) ([]services.FolderInfo, error) {
	var res []services.FolderInfo
	err := c.Get(fmt.Sprintf("/team/%v/folders", teamId)).Do(&res)
	return res, err
}

func (c *client) createFolder(name, teamId string, parentFolderId *string) (string, error) {
	body := map[string]interface{}{"name": name, "team_id": teamId}
	if parentFolderId != nil {
		body["parent_folder_id"] = *parentFolderId
	}

	var res map[string]string
	err := c.Post("/folder/create").Json(body).Do(&res)
	return res["folder_id"], err
}

func (c *client) folderInfo(folderId string) (services.FolderInfo, error) {
	var res services.FolderInfo
	err := c.Get(fmt.Sprintf("/folder/%v", folderId)).Do(&res)
	return res, err
}

func (c *client) updateFolder(folderId string, updates map[string]interface{}) error {
	return c.Post(fmt.Sprintf("/folder/%v/update", folderId)).Json(updates).Do(nil)
}

func (c *client) deleteFolder(folderId string) error {
	return c.Delete(fmt.Sprintf("/folder/%v", folderId)).Do(nil)
}

func (c *client) listFolderDocuments(folderId string) ([]services.DocumentInfo, error) {
	var res []services.DocumentInfo
	err := c.Get(fmt.Sprintf("/folder/%v/documents", folderId)).Do(&res)
	return res, err
}

func (c *client) createStatus(name string) (string, error) {
	body := map[string]string{"name": name}

	var res map[string]string
	err := c.Post("/status/create").Json(body).Do(&res)
	return res["status_id"], err
}

func (c *client) listStatuses() ([]services.StatusInfo, error) {
	var res []services.StatusInfo
	err := c.Get("/status/list").Do(&res)
	return res, err
}

func (c *client) deleteStatus(statusId string) error {
	return c.Delete(fmt.Sprintf("/status/%v", statusId)).Do(nil)
}

func (c *client) createScenario(name, description string) (string, error) {
	body := map[string]string{"name": name, "description": description}

	var res map[string]string
	err := c.Post("/scenario/create").Json(body).Do(&res)
	return res["scenario_id"], err
}

func (c *client) deleteScenario(scenarioId string) error {
	return c.Delete(fmt.Sprintf("/scenario/%v", scenarioId)).Do(nil)
}

func (c *client) createTag(name, color string) (string, error) {
	body := map[string]string{"name": name, "color": color}

	var res map[string]string
	err := c.Post("/tag/create").Json(body).Do(&res)
	return res["tag_id"], err
}

func (c *client) listTags() ([]services.TagInfo, error) {
	var res []services.TagInfo
	err := c.Get("/tag/list").Do(&res)
	return res, err
}

func (c *client) deleteTag(tagId string) error {
	return c.Delete(fmt.Sprintf("/tag/%v", tagId)).Do(nil)
}

func (c *client) attachTag(tagId, kind, taggableId string) (map[string]interface{}, error) {
	body := map[string]string{"kind": kind, "taggable_id": taggableId}

	var res map[string]interface{}
	err := c.Post(fmt.Sprintf("/tag/%v/attach", tagId)).Json(body).Do(&res)
	return res, err
}

func (c *client) detachTag(tagId, kind, taggableId string) (map[string]interface{}, error) {
	body := map[string]string{"kind": kind, "taggable_id": taggableId}

	var res map[string]interface{}
	err := c.Delete(fmt.Sprintf("/tag/%v/attach", tagId)).Json(body).Do(&res)
	return res, err
}

func (c *client) listTaggings(tagId string) ([]map[string]interface{}, error) {
	var res []map[string]interface{}
	err := c.Get(fmt.Sprintf("/tag/%v/taggings", tagId)).Do(&res)
	return res, err
}

func (c *client) createDocument(title, content, folderId, statusId, scenarioId string) (string, error) {
	body := map[string]string{
		"title": title, "content": content,
		"folder_id": folderId, "status_id": statusId, "scenario_id": scenarioId,
	}

	var res map[string]string
	err := c.Post("/document/create").Json(body).Do(&res)
	return res["document_id"], err
}

func (c *client) documentInfo(documentId string) (services.DocumentInfo, error) {
	var res services.DocumentInfo
	err := c.Get(fmt.Sprintf("/document/%v", documentId)).Do(&res)
	return res, err
}

func (c *client) updateDocument(documentId string, updates map[string]interface{}) error {
	return c.Post(fmt.Sprintf("/document/%v/update", documentId)).Json(updates).Do(nil)
}

func (c *client) deleteDocument(documentId string) error {
	return c.Delete(fmt.Sprintf("/document/%v", documentId)).Do(nil)
}

type changeStatusResult struct {
	Changed   bool   `json:"changed"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

func (c *client) changeStatus(documentId, statusId string) (changeStatusResult, error) {
	body := map[string]string{"status_id": statusId}

	var res changeStatusResult
	err := c.Post(fmt.Sprintf("/document/%v/status", documentId)).Json(body).Do(&res)
	return res, err
}

type tagResult struct {
	Added   bool   `json:"added"`
	Removed bool   `json:"removed"`
	Message string `json:"message"`
}

func (c *client) addDocumentTag(documentId, tagId string) (tagResult, error) {
	var res tagResult
	err := c.Post(fmt.Sprintf("/document/%v/tags/%v", documentId, tagId)).Do(&res)
	return res, err
}

func (c *client) removeDocumentTag(documentId, tagId string) (tagResult, error) {
	var res tagResult
	err := c.Delete(fmt.Sprintf("/document/%v/tags/%v", documentId, tagId)).Do(&res)
	return res, err
}

func (c *client) listDocumentTags(documentId string) ([]services.TagInfo, error) {
	var res []services.TagInfo
	err := c.Get(fmt.Sprintf("/document/%v/tags", documentId)).Do(&res)
	return res, err
}

func (c *client) listActivities(documentId string) ([]services.ActivityInfo, error) {
	var res []services.ActivityInfo
	err := c.Get(fmt.Sprintf("/document/%v/activities", documentId)).Do(&res)
	return res, err
}

func (c *client) createShareLink(documentId string, ttlHours int) (string, error) {
	body := map[string]int{"ttl_hours": ttlHours}

	var res map[string]string
	err := c.Post(fmt.Sprintf("/document/%v/share", documentId)).Json(body).Do(&res)
	return res["token"], err
}

func (c *client) getSharedDocument(token string) (services.DocumentInfo, error) {
	var res services.DocumentInfo
	err := c.Get(fmt.Sprintf("/document/shared/%v", token)).Do(&res)
	return res, err
}

func (c *client) uploadAttachment(documentId, filename string, data io.Reader) error {
	return c.Post(fmt.Sprintf("/document/%v/attachments/%v", documentId, filename)).Body(data).Do(nil)
}

func (c *client) downloadAttachment(documentId, filename string) ([]byte, error) {
	endpoint := fmt.Sprintf("/document/%v/attachments/%v", documentId, filename)
	req := httptest.NewRequest("GET", endpoint, nil)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %v", c.authToken))
	w := httptest.NewRecorder()
	c.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		if res.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("get %v failed with status %d and res '%v'", endpoint, res.StatusCode, w.Body.String())
	}

	return io.ReadAll(w.Body)
}
